package domain

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
