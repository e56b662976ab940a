package models

import "time"

// Widget is a business's chat installation. Each account owns exactly one.
type Widget struct {
	ID           string    `db:"id" json:"id"`
	AccountID    string    `db:"account_id" json:"account_id"`
	Color        string    `db:"color" json:"color"`
	HeaderText   string    `db:"header_text" json:"header_text"`
	GreetingText string    `db:"greeting_text" json:"greeting_text"`
	LogoURL      *string   `db:"logo_url" json:"logo_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// WidgetSettings is the owner-editable branding of a widget.
type WidgetSettings struct {
	Color        string  `json:"color" binding:"required"`
	HeaderText   string  `json:"header_text" binding:"required"`
	GreetingText string  `json:"greeting_text" binding:"required"`
	LogoURL      *string `json:"logo_url"`
}

// PublicWidget is the view served to the embed script.
type PublicWidget struct {
	ID           string  `json:"id"`
	Color        string  `json:"color"`
	HeaderText   string  `json:"header_text"`
	GreetingText string  `json:"greeting_text"`
	LogoURL      *string `json:"logo_url,omitempty"`
}

// Public strips owner-only fields.
func (w Widget) Public() PublicWidget {
	return PublicWidget{
		ID:           w.ID,
		Color:        w.Color,
		HeaderText:   w.HeaderText,
		GreetingText: w.GreetingText,
		LogoURL:      w.LogoURL,
	}
}
