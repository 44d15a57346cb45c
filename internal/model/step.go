package model

import (
	"strings"
	"time"
)

// StepStatus is the lifecycle state of one transaction step.
type StepStatus string

const (
	StepIdle    StepStatus = "idle"
	StepPending StepStatus = "pending"
	StepWaiting StepStatus = "waiting"
	StepSuccess StepStatus = "success"
	StepError   StepStatus = "error"
)

// Terminal reports whether the status only changes through a reset.
func (s StepStatus) Terminal() bool {
	return s == StepSuccess || s == StepError
}

// TransactionStep is a snapshot of one step in the deposit sequence.
type TransactionStep struct {
	Index           int        `json:"index"`
	Title           string     `json:"title"`
	Status          StepStatus `json:"status"`
	Confirmations   uint64     `json:"confirmations"`
	TransactionHash string     `json:"transaction_hash,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Err             error      `json:"-"`
}

// ExplorerURL links the step's transaction on a block explorer.
func (s TransactionStep) ExplorerURL(base string) string {
	if s.TransactionHash == "" || base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/tx/" + s.TransactionHash
}

// StepRecord is one persisted step transition.
type StepRecord struct {
	SessionID       string     `json:"session_id"`
	ChainID         uint64     `json:"chain_id"`
	StepIndex       int        `json:"step_index"`
	Title           string     `json:"title"`
	Status          StepStatus `json:"status"`
	Confirmations   uint64     `json:"confirmations"`
	TransactionHash string     `json:"transaction_hash,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	RecordedAt      string     `json:"recorded_at"`
}

// Session describes one run of the approve, approve, deposit sequence.
type Session struct {
	ID        string    `json:"id"`
	ChainID   uint64    `json:"chain_id"`
	Account   string    `json:"account"`
	Vault     string    `json:"vault"`
	Amount0   string    `json:"amount0"`
	Amount1   string    `json:"amount1"`
	StartedAt time.Time `json:"started_at"`
}

// NewStepRecord captures a step transition for persistence.
func NewStepRecord(sessionID string, chainID uint64, step TransactionStep, at time.Time) StepRecord {
	return StepRecord{
		SessionID:       sessionID,
		ChainID:         chainID,
		StepIndex:       step.Index,
		Title:           step.Title,
		Status:          step.Status,
		Confirmations:   step.Confirmations,
		TransactionHash: step.TransactionHash,
		ErrorMessage:    step.ErrorMessage,
		RecordedAt:      at.UTC().Format(time.RFC3339Nano),
	}
}
