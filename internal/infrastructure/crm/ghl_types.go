package crm

// ghlUpsertContactRequest is the payload for creating or updating a contact
type ghlUpsertContactRequest struct {
	LocationID   string           `json:"locationId"`
	Email        string           `json:"email"`
	FirstName    string           `json:"firstName,omitempty"`
	LastName     string           `json:"lastName,omitempty"`
	Phone        string           `json:"phone,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	CustomFields []ghlCustomField `json:"customFields,omitempty"`
}

// ghlCustomField carries one quiz answer onto the contact record
type ghlCustomField struct {
	Key   string `json:"key"`
	Value string `json:"field_value"`
}

// ghlUpsertContactResponse is the response envelope for a contact upsert
type ghlUpsertContactResponse struct {
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

// ghlTagsRequest is the payload for adding or removing contact tags
type ghlTagsRequest struct {
	Tags []string `json:"tags"`
}

// ghlOpportunitySearchResponse is the response for an opportunity search
type ghlOpportunitySearchResponse struct {
	Opportunities []struct {
		ID         string `json:"id"`
		PipelineID string `json:"pipelineId"`
	} `json:"opportunities"`
}

// ghlOpportunityRequest is the payload for creating or updating an opportunity
type ghlOpportunityRequest struct {
	LocationID      string `json:"locationId,omitempty"`
	PipelineID      string `json:"pipelineId,omitempty"`
	PipelineStageID string `json:"pipelineStageId"`
	ContactID       string `json:"contactId,omitempty"`
	Name            string `json:"name,omitempty"`
	Status          string `json:"status"`
}

// ghlErrorResponse is the error envelope returned by the API
type ghlErrorResponse struct {
	Message string `json:"message"`
}
