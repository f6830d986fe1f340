package domain

type CommandType string

const (
	CommandMarkov  CommandType = "markov"
	CommandPing    CommandType = "ping"
	CommandHelp    CommandType = "help"
	CommandRestart CommandType = "restart"
	CommandUnknown CommandType = "unknown"
)

func (c CommandType) String() string {
	return string(c)
}

// Permission is a capability granted to an identity on the platform.
type Permission string

const (
	PermissionAdministrator Permission = "administrator"
	PermissionManageServer  Permission = "manage_server"
)

func (p Permission) String() string {
	return string(p)
}
