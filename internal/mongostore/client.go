// Package mongostore is the MongoDB side of the content repositories.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/description"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Client wraps a driver client and tracks whether any server is reachable.
// The driver keeps reconnecting in the background; Connected follows it.
type Client struct {
	client    *mongo.Client
	db        *mongo.Database
	connected atomic.Bool
}

// Connect dials uri and selects database. A server that does not answer
// the initial ping is not an error: the client starts offline and flips to
// connected once the driver's monitor sees a server.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	c := &Client{}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetServerMonitor(&event.ServerMonitor{
			TopologyDescriptionChanged: func(e *event.TopologyDescriptionChangedEvent) {
				c.observe(e.NewDescription)
			},
		})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}
	c.client = client
	c.db = client.Database(database)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		slog.Warn("MongoDB is unreachable, serving from local files until it returns", "error", err)
	} else {
		c.connected.Store(true)
		slog.Info("Connected to MongoDB", "database", database)
	}
	return c, nil
}

func (c *Client) observe(topo description.Topology) {
	up := hasSelectableServer(topo)
	if was := c.connected.Swap(up); was != up {
		slog.Info("MongoDB connectivity changed", "connected", up)
	}
}

func hasSelectableServer(topo description.Topology) bool {
	for _, s := range topo.Servers {
		if s.Kind != description.Unknown {
			return true
		}
	}
	return false
}

func (c *Client) Connected() bool { return c.connected.Load() }

func (c *Client) Database() *mongo.Database { return c.db }

func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
