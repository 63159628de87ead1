package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Domain
	FieldUserID = "user_id"
	FieldRoomID = "room_id"

	// Service
	FieldService = "service"
)
