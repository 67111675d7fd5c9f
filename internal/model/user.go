package model

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}
