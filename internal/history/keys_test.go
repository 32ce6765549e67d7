package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePageName(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		input  string
		want   int
		wantOK bool
	}{
		{name: "canonical", id: "u", input: "u_chat_3", want: 3, wantOK: true},
		{name: "with extension", id: "u", input: "u_chat_0.json", want: 0, wantOK: true},
		{name: "meta sidecar", id: "u", input: "u_chat_0.json.meta"},
		{name: "other conversation", id: "u", input: "v_chat_0"},
		{name: "too many parts", id: "u", input: "u_chat_0_x"},
		{name: "not a number", id: "u", input: "u_chat_x"},
		{name: "negative", id: "u", input: "u_chat_-1"},
		{name: "wrong marker", id: "u", input: "u_page_1"},
		{name: "id only appears later", id: "u", input: "x_chat_u"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParsePageName(tc.id, tc.input)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "chats/bob", PageDir("bob"))
	assert.Equal(t, "bob_chat_2", PageName("bob", 2))
	assert.Equal(t, "chats/bob/bob_chat_2", PageKey("bob", PageName("bob", 2)))
	assert.Equal(t, "userid_conversations", IndexKey("userid"))
}
