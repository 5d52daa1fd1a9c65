package httpdto

type PresignUploadRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	SizeBytes   int64  `json:"sizeBytes" binding:"required"`
}

type PresignUploadResponse struct {
	UploadURL   string            `json:"uploadUrl"`
	Headers     map[string]string `json:"headers,omitempty"`
	MediaURL    string            `json:"mediaUrl"`
	MessageType string            `json:"messageType"`
}

type RegisterPushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

type PushSubscriptionResponse struct {
	ID string `json:"id"`
}

type FollowRequest struct {
	UserID string `json:"userId" binding:"required"`
}
