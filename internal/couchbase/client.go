package couchbase

import "time"

// Client bundles the cluster connection with the snapshot store on top of it
type Client struct {
	*SnapshotStore
	connManager *ConnectionManager
}

// NewClient connects and returns a snapshot store expiring entries after ttl
func NewClient(settings Settings, ttl time.Duration) (*Client, error) {
	connManager, err := NewConnectionManager(settings)
	if err != nil {
		return nil, err
	}

	docManager := NewDocumentManager(connManager.Collection())

	return &Client{
		SnapshotStore: NewSnapshotStore(docManager, ttl),
		connManager:   connManager,
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}
