package rosz

import "fmt"

// ActionClient is reserved for ROS 2 action clients, which are not
// supported.
type ActionClient struct{}

// ActionServer is reserved for ROS 2 action servers, which are not
// supported.
type ActionServer struct{}

// CreateActionClient always fails with ErrNotImplemented.
func (n *Node) CreateActionClient(action string) (*ActionClient, error) {
	return nil, fmt.Errorf("%w: action client %s", ErrNotImplemented, action)
}

// CreateActionServer always fails with ErrNotImplemented.
func (n *Node) CreateActionServer(action string) (*ActionServer, error) {
	return nil, fmt.Errorf("%w: action server %s", ErrNotImplemented, action)
}
