package entity

type UserSecret struct {
	UserUUID UUID   `gorm:"primaryKey"`
	Hash     string `gorm:"not null"`
}
