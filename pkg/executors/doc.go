// Package executors provides the task executors plugged into worker pools.
//
// Every executor is a pure function of its task: it reads task fields and
// returns a payload describing what should change, leaving shared state to
// the caller.
//
// Executors:
//   - Echo: generic simulated work, cost proportional to task complexity
//   - Translation: code modernization phases, stubbed or LLM-backed
//   - ImpactAudit: finds references to a changed symbol in a context summary
//   - Dynamics: agent movement and wealth deltas for crowd simulations
//   - Sentiment: opinion propagation through a persona influence mesh
//   - ChainForces: bond and Lennard-Jones forces on a residue chain
package executors
