// Package identity abstracts the device-property bridge that exposes
// who this device is and which organization it belongs to.
//
// The upload and analytics cores depend only on the Provider interface;
// each deployment target supplies its own implementation (on-device
// builds query the client's property bridge, tooling uses Static).
package identity

import "time"

// UnenrolledOrganizationID is the organization devices report before
// they have been enrolled anywhere.
const UnenrolledOrganizationID = 18579

// Provider exposes device identity properties. Values are read at call
// time by the consumers; this package never refreshes them.
type Provider interface {
	// OrganizationID is the organization the device is currently
	// assigned to.
	OrganizationID() int64

	// DeviceToken is the device-issued JWT used to authorize calls.
	// Empty means the device cannot authorize anything.
	DeviceToken() string

	// LastModified is when the device properties last changed.
	LastModified() time.Time
}

// Static is a fixed-value Provider for tooling and tests.
type Static struct {
	Org      int64
	Token    string
	Modified time.Time
}

// NewStatic builds a Static provider. A zero organization id falls back
// to UnenrolledOrganizationID and the modification time defaults to now
// so downstream caches treat the identity as fresh.
func NewStatic(orgID int64, token string) *Static {
	if orgID == 0 {
		orgID = UnenrolledOrganizationID
	}
	return &Static{Org: orgID, Token: token, Modified: time.Now()}
}

func (s *Static) OrganizationID() int64 { return s.Org }

func (s *Static) DeviceToken() string { return s.Token }

func (s *Static) LastModified() time.Time { return s.Modified }
