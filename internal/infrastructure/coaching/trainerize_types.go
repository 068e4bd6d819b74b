package coaching

// trainerizeCreateUserRequest is the payload for creating a client
type trainerizeCreateUserRequest struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	MobilePhone string `json:"mobile_phone,omitempty"`
	Role        string `json:"role"`
	Status      string `json:"status"`
}

// trainerizeCreateUserResponse is the response for creating a client
type trainerizeCreateUserResponse struct {
	UserID int `json:"userID"`
}

// trainerizeListUsersResponse is the response for a client search
type trainerizeListUsersResponse struct {
	Users []struct {
		ID    int    `json:"id"`
		Email string `json:"email"`
	} `json:"users"`
}

// trainerizeCopyProgramRequest is the payload for assigning a training program
type trainerizeCopyProgramRequest struct {
	UserID     int    `json:"userID"`
	ProgramID  int    `json:"programID"`
	StartDate  string `json:"startDate"`
	ForceMerge bool   `json:"forceMerge"`
}

// trainerizeUpdateUserRequest is the payload for changing a client's status
type trainerizeUpdateUserRequest struct {
	UserID int    `json:"userID"`
	Status string `json:"status"`
}

// trainerizeErrorResponse is the error envelope returned by the API
type trainerizeErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
