// Copyright 2026 TRIP Verifier Project
//
// Repositories - convenience wrapper for all database repositories.
// Provides a single point of access to all repository types.

package database

// Repositories holds all repository instances.
type Repositories struct {
	Chains       *ChainRepository
	Mobility     *MobilityRepository
	Epochs       *EpochRepository
	Challenges   *ChallengeRepository
	Certificates *CertificateRepository
}

// NewRepositories creates all repositories with the given client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Chains:       NewChainRepository(client),
		Mobility:     NewMobilityRepository(client),
		Epochs:       NewEpochRepository(client),
		Challenges:   NewChallengeRepository(client),
		Certificates: NewCertificateRepository(client),
	}
}
