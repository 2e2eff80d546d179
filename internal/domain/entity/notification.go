package entity

// PushMessage is one provider send. Data values must be strings.
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// PushResult reports a batch outcome. InvalidTokens are tokens the provider says are gone.
type PushResult struct {
	Sent          int
	Failed        int
	InvalidTokens []string
}
