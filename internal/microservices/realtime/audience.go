package realtime

// Channel naming scheme shared by the router and subscribing clients.
const (
	userChannelPrefix = "notifications:user:"
	roleChannelPrefix = "notifications:role:"
	GlobalChannel     = "notifications:global"
)

// UserChannel returns the channel name carrying events for a single user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// RoleChannel returns the channel name carrying events for every member of a role.
func RoleChannel(role string) string {
	return roleChannelPrefix + role
}

type audienceKind int

const (
	audienceUser audienceKind = iota
	audienceRole
	audienceGlobal
)

// Audience is a logical addressing target: a single user, a role, or everyone.
// It is transient; resolution to channels happens at publish time.
type Audience struct {
	kind audienceKind
	id   string
}

func SingleUser(userID string) Audience {
	return Audience{kind: audienceUser, id: userID}
}

func Role(role string) Audience {
	return Audience{kind: audienceRole, id: role}
}

func Global() Audience {
	return Audience{kind: audienceGlobal}
}

// Channels resolves the audience to concrete transport channel names.
func (a Audience) Channels() []string {
	switch a.kind {
	case audienceUser:
		return []string{UserChannel(a.id)}
	case audienceRole:
		return []string{RoleChannel(a.id)}
	default:
		return []string{GlobalChannel}
	}
}
