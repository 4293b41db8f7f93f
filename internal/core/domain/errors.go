package domain

import "errors"

var (
	// ErrAccountAlreadyExists is returned when adding a record whose account id
	// is already in the store.
	ErrAccountAlreadyExists = errors.New("account already exists")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrWrongPassword is returned when the stored secret cannot be decrypted
	// with the given password.
	ErrWrongPassword = errors.New("wrong password")
	// ErrCorruptAccount is returned when a decrypted secret does not derive
	// back to the account id it is stored under.
	ErrCorruptAccount = errors.New("account data is corrupt")
	// ErrNullAccountID ...
	ErrNullAccountID = errors.New("account id must not be null")
	// ErrNullEncryptedSecret ...
	ErrNullEncryptedSecret = errors.New("encrypted secret must not be null")
	// ErrUnreadableSecret is returned when importing a record whose secret
	// is in none of the supported cypher formats.
	ErrUnreadableSecret = errors.New("encrypted secret has an unknown format")
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic must not be null")

	// ErrNullPassword ...
	ErrNullPassword = errors.New("password must not be null")
	// ErrPasswordMismatch is returned when a password and its confirmation
	// differ.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrTransactionNotFound ...
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionInProgress is returned when trying to forget a transaction
	// that did not reach a terminal state yet.
	ErrTransactionInProgress = errors.New("transaction is still in progress")
	// ErrNullPayload ...
	ErrNullPayload = errors.New("transaction payload must not be null")
)
