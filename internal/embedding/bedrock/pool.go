package bedrock

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
)

var (
	sharedClientsMu sync.Mutex
	sharedClients   = make(map[string]*Client)
)

func clientPoolKey(cfg aws.Config, modelID string) string {
	credPtr := ""
	if cfg.Credentials != nil {
		credPtr = fmt.Sprintf("%p", cfg.Credentials)
	}
	return fmt.Sprintf("%s|%s|%s", cfg.Region, modelID, credPtr)
}

// GetSharedClient returns a process-wide cached Bedrock client for the
// given region/model. Reusing the client keeps HTTP/2 connections pooled
// instead of recreated on each embedding call.
func GetSharedClient(cfg aws.Config, modelID string) *Client {
	key := clientPoolKey(cfg, modelID)

	sharedClientsMu.Lock()
	defer sharedClientsMu.Unlock()

	if client, ok := sharedClients[key]; ok {
		return client
	}

	client := NewClient(cfg, modelID)
	sharedClients[key] = client
	return client
}
