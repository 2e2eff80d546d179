package entity

// User is owned by the accounts service. Chat only reads it.
type User struct {
	ID                         string `json:"id"`
	Email                      string `json:"email"`
	Name                       string `json:"name"`
	Phone                      string `json:"phone,omitempty"`
	PreferredNotificationPhone string `json:"preferred_notification_phone,omitempty"`
	PreferredNotificationEmail string `json:"preferred_notification_email,omitempty"`
	Avatar                     string `json:"avatar,omitempty"`
	IsActive                   bool   `json:"is_active"`
	IsStaff                    bool   `json:"is_staff"`
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// NotificationPhone prefers the phone the user chose for notifications.
func (u *User) NotificationPhone() string {
	if u.PreferredNotificationPhone != "" {
		return u.PreferredNotificationPhone
	}
	return u.Phone
}

func (u *User) NotificationEmail() string {
	if u.PreferredNotificationEmail != "" {
		return u.PreferredNotificationEmail
	}
	return u.Email
}

func (u *User) Info() *UserInfo {
	return &UserInfo{ID: u.ID, Name: u.DisplayName(), Avatar: u.Avatar}
}

type UserInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
