package domain

import "time"

// Account is the tenant boundary. Every collection row in the remote store is
// tagged with the account id.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemberRole is a member's standing within an account.
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleMember MemberRole = "MEMBER"
)

// Membership ties a user to an account. A user holds at most one membership;
// account resolution must never create a second.
type Membership struct {
	ID        string     `json:"id"`
	AccountID string     `json:"accountId"`
	UserID    string     `json:"userId"`
	Role      MemberRole `json:"role"`
}

// InviteStatus tracks an invite's lifecycle.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
)

// Invite is a pending offer, keyed by email, to join an existing account.
type Invite struct {
	ID        string       `json:"id"`
	AccountID string       `json:"accountId"`
	Email     string       `json:"email"`
	Status    InviteStatus `json:"status"`
}
