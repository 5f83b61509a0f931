// Package interfaces declares the boundaries of the ledger: its store and the
// external collaborators it calls out to.
package interfaces

//go:generate mockgen -source=collaborators.go -destination=../mocks/collaborators.go -package=mocks
//go:generate mockgen -source=events_publisher.go -destination=../mocks/events_publisher.go -package=mocks
