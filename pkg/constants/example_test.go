package constants_test

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/agentstation/eventflow/pkg/constants"
)

// Example demonstrates deriving a descriptor path from an event id
func Example() {
	path := filepath.Join(constants.DefaultEventsPath, "sil-2024"+constants.DescriptorExt)
	fmt.Println(path)
	// Output: /usr/local/share/fidera/event/sil-2024.json
}

// Example_timeouts demonstrates timeout constants
func Example_timeouts() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	select {
	case <-time.After(10 * time.Millisecond):
		fmt.Println("Resolve completed")
	case <-ctx.Done():
		fmt.Println("Resolve timed out")
	}

	fmt.Printf("Ping every %v\n", constants.DefaultPingInterval)
	// Output:
	// Resolve completed
	// Ping every 30s
}

// Example_defaults shows the zone and address defaults
func Example_defaults() {
	fmt.Printf("Zone: %s\n", constants.DefaultTimezone)
	fmt.Printf("Listen: %s\n", constants.DefaultListenAddr)
	fmt.Printf("Online sentinel: %q\n", constants.OnlineLocation)
	// Output:
	// Zone: Europe/Berlin
	// Listen: 127.0.0.1:24802
	// Online sentinel: "online"
}
