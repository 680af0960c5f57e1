package proposals

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equito-network/equitovote/x/gateway/contracts"
)

// Proposal is the read model of one voting subject stored on the destination
// chain.
type Proposal struct {
	ID                  common.Hash `json:"id"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	StartTimestamp      uint64      `json:"start_timestamp"`
	EndTimestamp        uint64      `json:"end_timestamp"`
	NumVotesYes         *big.Int    `json:"num_votes_yes"`
	NumVotesNo          *big.Int    `json:"num_votes_no"`
	NumVotesAbstain     *big.Int    `json:"num_votes_abstain"`
	TokenName           string      `json:"token_name"`
	StartBlockNumber    uint64      `json:"start_block_number"`
	OriginChainSelector uint64      `json:"origin_chain_selector"`
}

// FromRecord converts the on-chain tuple into the read model.
func FromRecord(rec contracts.ProposalRecord) Proposal {
	p := Proposal{
		ID:              rec.Id,
		Title:           rec.Title,
		Description:     rec.Description,
		NumVotesYes:     rec.NumVotesYes,
		NumVotesNo:      rec.NumVotesNo,
		NumVotesAbstain: rec.NumVotesAbstain,
		TokenName:       rec.TokenName,
	}
	if rec.StartTimestamp != nil {
		p.StartTimestamp = rec.StartTimestamp.Uint64()
	}
	if rec.EndTimestamp != nil {
		p.EndTimestamp = rec.EndTimestamp.Uint64()
	}
	if rec.StartBlockNumber != nil {
		p.StartBlockNumber = rec.StartBlockNumber.Uint64()
	}
	if rec.OriginChainSelector != nil {
		p.OriginChainSelector = rec.OriginChainSelector.Uint64()
	}
	if p.NumVotesYes == nil {
		p.NumVotesYes = new(big.Int)
	}
	if p.NumVotesNo == nil {
		p.NumVotesNo = new(big.Int)
	}
	if p.NumVotesAbstain == nil {
		p.NumVotesAbstain = new(big.Int)
	}
	return p
}

// Exists reports whether the record describes a stored proposal. The contract
// returns a zero tuple for unknown ids.
func (p Proposal) Exists() bool {
	return p.ID != (common.Hash{})
}

// IsActive reports whether votes are still accepted. The deadline itself is
// closed: a proposal ending exactly now is no longer active.
func (p Proposal) IsActive(now time.Time) bool {
	return p.EndTimestamp > uint64(now.Unix())
}

// Decision summarizes the current tally: the winning option, or the tied
// options, or "no votes".
func (p Proposal) Decision() string {
	tallies := []struct {
		name  string
		votes *big.Int
	}{
		{"yes", p.NumVotesYes},
		{"no", p.NumVotesNo},
		{"abstain", p.NumVotesAbstain},
	}

	max := new(big.Int)
	for _, tally := range tallies {
		if tally.votes.Cmp(max) > 0 {
			max = tally.votes
		}
	}
	if max.Sign() == 0 {
		return "no votes"
	}

	var leaders []string
	for _, tally := range tallies {
		if tally.votes.Cmp(max) == 0 {
			leaders = append(leaders, tally.name)
		}
	}
	if len(leaders) == 1 {
		return leaders[0]
	}
	return "tie: " + strings.Join(leaders, ", ")
}

// ApplyVote bumps the tally for one option. Used for the optimistic local
// update after a vote completes; the next chain read replaces it.
func (p *Proposal) ApplyVote(option contracts.VoteOption, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	switch option {
	case contracts.VoteYes:
		p.NumVotesYes = new(big.Int).Add(p.NumVotesYes, amount)
	case contracts.VoteNo:
		p.NumVotesNo = new(big.Int).Add(p.NumVotesNo, amount)
	case contracts.VoteAbstain:
		p.NumVotesAbstain = new(big.Int).Add(p.NumVotesAbstain, amount)
	}
}
