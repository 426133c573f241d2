package entity

import "time"

const (
	LanguagePython     = "python"
	LanguageJavaScript = "javascript"
	LanguageTypeScript = "typescript"
	LanguageGo         = "go"
	LanguageJava       = "java"
	LanguageCpp        = "cpp"
)

var knownLanguages = map[string]bool{
	LanguagePython:     true,
	LanguageJavaScript: true,
	LanguageTypeScript: true,
	LanguageGo:         true,
	LanguageJava:       true,
	LanguageCpp:        true,
}

func IsKnownLanguage(language string) bool {
	return knownLanguages[language]
}

// CodeFile name uniqueness is deliberately not enforced. Two files in the
// same room may carry the same name; identity is always the UUID.
type CodeFile struct {
	UUID      UUID      `gorm:"primaryKey" json:"id"`
	RoomUUID  UUID      `gorm:"not null;index" json:"roomId"`
	Name      string    `gorm:"not null" json:"name"`
	Language  string    `gorm:"not null" json:"language"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}
