package commands

type Definition struct {
	Name        string
	Description string
	Usage       string
	Aliases     []string
	// Channels restricts the command to the listed channels; empty means all.
	Channels []string
	// AdminOnly commands are refused unless the sender is a chat
	// administrator or listed in the configured admins.
	AdminOnly bool
	Handler   Handler
}
