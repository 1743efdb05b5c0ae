package httpapi

type loginRequest struct {
	Username   string `json:"username" validate:"required,max=100"`
	Password   string `json:"password" validate:"required,max=100"`
	DeviceInfo string `json:"device_info" validate:"max=256"`
}

type externalLoginRequest struct {
	Domain     string `json:"domain" validate:"max=100"`
	DeviceInfo string `json:"device_info" validate:"max=256"`
}

type registerRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	DeviceInfo      string `json:"device_info" validate:"max=256"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	DeviceInfo   string `json:"device_info" validate:"max=256"`
}

type revokeRequest struct {
	RefreshToken string `json:"refresh_token"`
	Reason       string `json:"reason" validate:"max=64"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,required"`
}

type statusRequest struct {
	Active *bool `json:"active" validate:"required"`
}
