package orchestrator

import (
	"net"

	"github.com/nextlevelbuilder/codi/internal/approval"
	"github.com/nextlevelbuilder/codi/internal/ipc"
)

// pipeTransports returns two connected Transports backed by an in-memory
// net.Pipe, standing in for a dialed Unix socket connection in tests that
// only care about the framing/message protocol, not real process spawning.
func pipeTransports() (client, server *ipc.Transport) {
	c, s := net.Pipe()
	return ipc.NewTransport(c), ipc.NewTransport(s)
}

func approvalRequest(toolName, category string, dangerTier int, dangerWhy, preview string) approval.Request {
	return approval.Request{
		ToolName:   toolName,
		Category:   category,
		DangerTier: dangerTier,
		DangerWhy:  dangerWhy,
		Preview:    preview,
	}
}
