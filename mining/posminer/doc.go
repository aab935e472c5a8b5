// Copyright (c) 2024 The posd developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package posminer implements the proof-of-stake minting engine.

The engine owns a single background staking loop per node.  Every tick it
checks that the node is synced, collects the staking wallet's spendable
outputs, filters them down to the ones that satisfy the network's coin age
rules and hands the survivors to an external block builder that performs the
kernel search and assembles the block.

It also exposes the two consensus-visible estimates reported by status
queries: the proof-of-stake difficulty of the chain tip and the estimated
network staking weight over the most recent 72 proof-of-stake intervals.

Errors raised by collaborators are sorted into two groups.  A *MintingError,
or a blockchain.RuleError caused by the chain moving under the candidate
block, is transient: its message is kept as the last error and the loop
carries on.  Anything else, an invalid target included, faults the loop,
which stops until staking is started again.  A loop that exits on its own,
after a panic or at node shutdown, is noticed as well and leaves the minter
faulted or idle.
*/
package posminer
