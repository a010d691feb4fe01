// Package domain holds the value types shared by the swarm core: tasks,
// results, worker statuses and bus messages.
package domain
