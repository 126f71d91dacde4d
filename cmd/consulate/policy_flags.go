package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/consulate"
	"pkt.systems/consulate/query"
)

// policyFlags carries --not-found, --found and --wait for lookup commands.
type policyFlags struct {
	notFound string
	found    string
	wait     time.Duration
}

func addPolicyFlags(cmd *cobra.Command, p *policyFlags, defaultFound query.FoundAction) {
	cmd.Flags().StringVar(&p.notFound, "not-found", query.NotFoundReject.String(), "when the target is absent: reject or wait")
	cmd.Flags().StringVar(&p.found, "found", defaultFound.String(), "when the target is present: reject, return or wait (wait applies to whole lists)")
	cmd.Flags().DurationVar(&p.wait, "wait", consulate.DefaultBlock, "how long a waiting policy may block (capped by --wait-ceiling)")
}

func (p policyFlags) policy(aggregate bool) (query.Policy, error) {
	policy, err := query.ParsePolicy(p.notFound, p.found)
	if err != nil {
		return query.Policy{}, err
	}
	if err := policy.Validate(aggregate); err != nil {
		return query.Policy{}, err
	}
	if p.wait < 0 {
		return query.Policy{}, fmt.Errorf("--wait must be >= 0")
	}
	return policy, nil
}
