package bridge

import (
	"errors"
	"fmt"
)

// TokenResponse is the client-credentials grant response from the bridge
// token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (r *TokenResponse) Validate() error {
	if r.AccessToken == "" {
		return errors.New("access_token is required")
	}
	if r.ExpiresIn <= 0 {
		return errors.New("expires_in must be a positive integer")
	}
	return nil
}

// CaseManagementUser is one entry in a find-user response.
type CaseManagementUser struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// FindUserResponse is the response shape of /case-management/users/find. An
// empty Data slice is valid and means the user is unknown to case management.
type FindUserResponse struct {
	Data  []CaseManagementUser `json:"data"`
	Links *ResponseLinks       `json:"links,omitempty"`
}

type ResponseLinks struct {
	Self string `json:"self,omitempty"`
}

func (r *FindUserResponse) Validate() error {
	if r.Data == nil {
		return errors.New("data is required")
	}
	for i, user := range r.Data {
		if user.ID == "" {
			return fmt.Errorf("data[%d].id is required", i)
		}
		if user.Type == "" {
			return fmt.Errorf("data[%d].type is required", i)
		}
	}
	return nil
}
