package protocol

// Port is the fixed port the agent listens on inside the container. Docker
// publishes it on an ephemeral loopback port; the host discovers the mapping
// by inspecting the container.
const Port = "6550"

// DataDir is the mount point of the staging volume inside the container. The
// host copies credential files, dictionaries and resources here; the agent
// reads them back.
const DataDir = "/var/lib/shellcamp"

// Names of the credential files the host stages into the data volume,
// relative to the data directory.
const (
	// SecretFile holds the control channel secret. Root-only; the student
	// must not be able to impersonate either end of the channel.
	SecretFile = "control_secret"
	// NotifyTokenFile holds the notify token. World-readable on purpose: the
	// student's own shell hook sends notifications, and a forged notification
	// costs nothing but an extra snapshot.
	NotifyTokenFile = "notify_token"
)

// NotifyAddrEnv is the container environment variable carrying the
// host-gateway address of the host's notify listener.
const NotifyAddrEnv = "SHELLCAMP_NOTIFY_ADDR"

// NotifyReport is the one-shot message the shell hook sends the host after
// every student command: the notify token plus the command line just pulled
// from the shell history. Command is empty on the very first prompt.
type NotifyReport struct {
	Token   string `json:"token"`
	Command string `json:"command,omitempty"`
}

// NotifyAck closes a notify exchange. The host replies only after its
// snapshot finished, so the next shell prompt never races the commit.
type NotifyAck struct {
	OK bool `json:"ok"`
}
