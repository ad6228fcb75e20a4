package types

import (
	"net"
	"strconv"
	"time"
)

// Database represents a managed database instance
type Database struct {
	ID        string    `json:"id"`        // Instance identifier
	Name      string    `json:"name"`      // Initial database name, if any
	Engine    string    `json:"engine"`    // postgres, mysql, etc.
	Version   string    `json:"version"`   // Engine version
	Endpoint  string    `json:"endpoint"`  // Connection endpoint
	Port      int       `json:"port"`      // Connection port
	State     string    `json:"state"`     // available, stopped, etc.
	Class     string    `json:"class"`     // Instance class (db.t3.micro)
	Zone      string    `json:"zone"`      // Availability zone
	CreatedAt time.Time `json:"created_at"`
	Provider  string    `json:"provider"` // aws

	// Raw holds the original API response
	Raw interface{} `json:"-"`
}

// IsAvailable returns true if the database is available
func (d *Database) IsAvailable() bool {
	return d.State == "available"
}

// IsStopped returns true if the database is stopped
func (d *Database) IsStopped() bool {
	return d.State == "stopped"
}

// Address returns host:port, or an empty string when the endpoint is unknown
func (d *Database) Address() string {
	if d.Endpoint == "" {
		return ""
	}
	return net.JoinHostPort(d.Endpoint, strconv.Itoa(d.Port))
}
