package whatsapp

// envelope is the common wrapper of every gateway response.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type sendResponse struct {
	envelope
	Data struct {
		MessageID int64 `json:"messageId"`
	} `json:"data"`
}

// ReceivedMessage is one inbound WhatsApp message as reported by the
// gateway's received-message feed.
type ReceivedMessage struct {
	ID         int64  `json:"id"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	Attachment string `json:"attachment"`
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
}

type receivedResponse struct {
	envelope
	Data []ReceivedMessage `json:"data"`
}

type validateResponse struct {
	envelope
	Data struct {
		Valid bool `json:"valid"`
	} `json:"data"`
}

// Usage is one metered counter of the gateway subscription.
type Usage struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// Subscription summarizes the gateway plan counters the credit guard reads.
type Subscription struct {
	WhatsAppSend Usage `json:"wa_send"`
}

type subscriptionResponse struct {
	envelope
	Data struct {
		Usage Subscription `json:"usage"`
	} `json:"data"`
}
