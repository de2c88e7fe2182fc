package models

type CreateResult struct {
	Success bool     `json:"success"`
	NewID   int64    `json:"new_id,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type UpdateResult struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

type DeleteResult struct {
	Success bool `json:"success"`
}

func SuccessCreate(id int64) CreateResult {
	return CreateResult{Success: true, NewID: id}
}

func FailedCreate(errs []string) CreateResult {
	return CreateResult{Errors: errs}
}

func SuccessUpdate() UpdateResult {
	return UpdateResult{Success: true}
}

func FailedUpdate(errs []string) UpdateResult {
	return UpdateResult{Errors: errs}
}

func SuccessDelete() DeleteResult {
	return DeleteResult{Success: true}
}
