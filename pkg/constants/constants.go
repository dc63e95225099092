package constants

const (
	DefaultNetwork = "udp"

	// Receive buffer for the client loop; one read never returns more.
	ReceiveBufferSize = 2048

	// Largest UDP payload over IPv4.
	MaxDatagramSize = 65507

	DefaultEchoAddr   = "127.0.0.1:5007"
	DefaultStatusAddr = "127.0.0.1:8081"

	EnvNetwork    = "UDPECHO_NETWORK"
	EnvBufferSize = "UDPECHO_BUFFER_SIZE"

	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130 // 128 + SIGINT

	PromptTransmit = "Enter data to transmit:"
	PromptReplies  = "Looking for replies; press Ctrl-C to stop"
)
