package constant

// Shared slog attribute keys.
const (
	Error    = "error"
	UserName = "username"
	UserID   = "user_id"
	RoomID   = "room_id"
	MemberID = "member_id"
	Intent   = "intent"
)
