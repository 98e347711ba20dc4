package event

// Event is one entry of the site's calendar file.
type Event struct {
	UID              string `json:"uid"`
	Title            string `json:"title"`
	Date             string `json:"date"` // DD/MM/YYYY
	Location         string `json:"location"`
	Description      string `json:"description"`
	MainLink         string `json:"mainLink"`
	RegistrationLink string `json:"registrationLink"`
	Image            string `json:"image"`
}

func (e Event) RecordID() string { return e.UID }

// EventRequest is the body of the add and update calls.
type EventRequest struct {
	Name         string `json:"name" example:"Bieg Niepodległości"`
	Date         string `json:"date" example:"2025-11-11"` // YYYY-MM-DD or DD/MM/YYYY
	Website      string `json:"website"`
	Registration string `json:"registration"`
	Description  string `json:"description"`
	Location     string `json:"location" example:"Zagórze"`
}
