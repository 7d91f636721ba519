package dto

type RequestDeletionDTO struct {
	// AccountID is optional: a delegate sets it to the target account,
	// an owner leaves it empty to delete their own account.
	AccountID    string `json:"account_id"`
	DataHandling string `json:"data_handling" binding:"required,oneof=download_snapshot delete_all"`
}

type AcknowledgeSnapshotDTO struct {
	Consent bool `json:"consent"`
}

type ConfirmDeletionDTO struct {
	Password string `json:"password" binding:"required"`
}
