// Package protocol defines the text exchanged between the chat server and its
// clients.  There is no framing beyond the newline: every client message is a
// single line, and every server notice is plain UTF-8 text.
package protocol

import "fmt"

// Server → Client texts sent verbatim.
const (
	// Banner is written once, right after the connection is accepted.
	Banner = "=== 这里是 MiniChat 服务端\n" +
		"=== 这里为公共聊天提供服务\n\n" +
		"请首先输入聊天昵称\n"

	// NamePrompt asks for the display name.  No trailing newline.
	NamePrompt = "请输入昵称："

	// PromptMarker precedes every read in the chat loop.  No trailing newline.
	PromptMarker = ">>>"

	// TransferFailed is a best-effort notice written when a read fails.
	TransferFailed = "传输失败\n"

	// AnonymousLeave replaces the departure notice when the name is empty.
	AnonymousLeave = "有用户离开了聊天室\n"
)

// Welcome is the personalized greeting sent to a client after the handshake.
func Welcome(name string) string {
	return fmt.Sprintf("欢迎 %s 你可以发言了\n\n", name)
}

// JoinNotice announces a newly named client to everybody else.
func JoinNotice(name string) string {
	return fmt.Sprintf("用户 %s 加入公共聊天室\n\n", name)
}

// LeaveNotice announces a departure.  Clients that never picked a name leave
// anonymously.
func LeaveNotice(name string) string {
	if name == "" {
		return AnonymousLeave
	}
	return fmt.Sprintf("用户 %s 离开了聊天室\n", name)
}

// ChatLine formats one relayed message.
func ChatLine(name, text string) string {
	return fmt.Sprintf("%s >>> %s\n", name, text)
}
