package spaces

import (
	"fmt"
	"os"
	"sync"
)

var (
	globalClient     *Client
	globalClientOnce sync.Once
	globalClientErr  error
)

// NewClientFromEnv creates a Spaces client from DO_SPACES_* environment
// variables. Safe to call multiple times; initialization happens once.
func NewClientFromEnv() (*Client, error) {
	globalClientOnce.Do(func() {
		globalClient, globalClientErr = initFromEnv()
	})
	return globalClient, globalClientErr
}

func initFromEnv() (*Client, error) {
	config := Config{
		AccessKey: os.Getenv("DO_SPACES_ACCESS_KEY"),
		SecretKey: os.Getenv("DO_SPACES_SECRET_KEY"),
		Bucket:    os.Getenv("DO_SPACES_BUCKET"),
		Region:    os.Getenv("DO_SPACES_REGION"),
		Endpoint:  os.Getenv("DO_SPACES_ENDPOINT"),
	}

	if config.Bucket == "" || config.Region == "" {
		return nil, fmt.Errorf("DO_SPACES_BUCKET and DO_SPACES_REGION must be configured")
	}
	if config.AccessKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("DO_SPACES_ACCESS_KEY and DO_SPACES_SECRET_KEY must be configured")
	}

	return NewClient(config)
}
