package airflow

import (
	"context"
	"net/http"
)

// Connection mirrors the API's connection resource.
type Connection struct {
	ID       string `json:"connection_id"`
	ConnType string `json:"conn_type"`
	Host     string `json:"host,omitempty"`
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// CreateConnection registers a new connection on the deployment.
func (c *Client) CreateConnection(ctx context.Context, conn Connection) error {
	return c.do(ctx, http.MethodPost, "/connections", conn, nil)
}

// DeleteConnection removes a connection by ID.
func (c *Client) DeleteConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/connections/"+id, nil, nil)
}

// UpsertConnection deletes any existing connection with the same ID and
// recreates it, so a rerun repoints the connection at the fresh endpoint.
func (c *Client) UpsertConnection(ctx context.Context, conn Connection) error {
	if err := c.DeleteConnection(ctx, conn.ID); err != nil && !IsNotFound(err) {
		return err
	}
	return c.CreateConnection(ctx, conn)
}
