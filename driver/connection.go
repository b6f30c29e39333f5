package driver

import "fmt"

// Type selects the backend of a connection.
type Type string

const (
	TypeShm    Type = "shm"
	TypeModbus Type = "modbus"
)

// Connection is the configuration of one driver connection. Exactly the
// section matching Type is used.
type Connection struct {
	ID      uint32        `yaml:"id"`
	Name    string        `yaml:"name"`
	Type    Type          `yaml:"type"`
	Enabled bool          `yaml:"enabled"`
	Shm     *ShmConfig    `yaml:"shm,omitempty"`
	Modbus  *ModbusConfig `yaml:"modbus,omitempty"`
}

func (c Connection) String() string {
	return fmt.Sprintf("%s connection %d (%s)", c.Type, c.ID, c.Name)
}
