package model

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type House struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership is the row that makes a user a flatmate of a house.
type Membership struct {
	ID        int64     `json:"id"`
	HouseID   int64     `json:"house_id"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Flatmate is a membership joined with the member's public profile.
type Flatmate struct {
	Membership
	User UserSummary `json:"user"`
}

// HouseSummary is a house as seen from one of its members.
type HouseSummary struct {
	House
	Role         Role `json:"role"`
	IsCreator    bool `json:"is_creator"`
	MembersCount int  `json:"members_count"`
	TasksCount   int  `json:"tasks_count"`
}
