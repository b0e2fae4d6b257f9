// Package character hosts one animated character: a graph instance, the
// character's world transform, and the control parameters gameplay code
// writes between frames. It is the task-execution host the graph core
// evaluates against.
package character

import (
	"sync"

	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/graph"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
)

// Character is one evaluable character instance. Update is not safe for
// concurrent use with itself; the scheduler guarantees each character is
// updated by exactly one worker per frame. Parameter and transform writes
// are safe from other goroutines between frames.
type Character interface {
	// Name returns the character's identifier, used as its trace tag.
	Name() string

	// Update evaluates one frame of the character's graph and returns the
	// resulting pose, root motion delta, and sampled events.
	Update(deltaTime float32) graph.Output

	// LastOutput returns the most recent Update result.
	LastOutput() graph.Output

	// SetWorldTransform replaces the character's world transform, used to
	// resolve world-space IK targets into model space.
	SetWorldTransform(t pose.Transform)

	// WorldTransform returns the character's current world transform.
	WorldTransform() pose.Transform

	// SetFloat writes a named float control parameter.
	SetFloat(name string, v float32)

	// SetBool writes a named bool control parameter.
	SetBool(name string, v bool)

	// Graph returns the underlying graph instance.
	Graph() *graph.GraphInstance

	// Shutdown tears down the character's node tree, releasing cached pose
	// buffers and emitting any pending state-exit events.
	Shutdown()
}

type characterInstance struct {
	mu sync.Mutex

	name      string
	instance  *graph.GraphInstance
	world     pose.Transform
	params    *graph.ControlParameters
	graphOpts []graph.Option
}

var _ Character = (*characterInstance)(nil)

// Option configures a character at construction.
type Option func(*characterInstance)

// WithWorldTransform sets the character's initial world transform.
func WithWorldTransform(t pose.Transform) Option {
	return func(c *characterInstance) { c.world = t }
}

// WithGraphOptions forwards options to the graph instance constructor.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(c *characterInstance) { c.graphOpts = append(c.graphOpts, opts...) }
}

// New creates a character evaluating def against skel. Panics if def or
// skel is nil; a character without a graph or skeleton cannot evaluate.
func New(name string, def *graph.Definition, skel *skeleton.Skeleton, options ...Option) Character {
	if def == nil {
		panic("character: New requires a non-nil graph definition")
	}
	if skel == nil {
		panic("character: New requires a non-nil skeleton")
	}

	c := &characterInstance{
		name:   common.Coalesce(name, "character"),
		world:  pose.Identity(),
		params: graph.NewControlParameters(),
	}
	for _, option := range options {
		option(c)
	}
	c.instance = graph.New(def, skel, append([]graph.Option{graph.WithTraceName(c.name)}, c.graphOpts...)...)
	return c
}

func (c *characterInstance) Name() string { return c.name }

func (c *characterInstance) Update(deltaTime float32) graph.Output {
	c.mu.Lock()
	world := c.world
	c.mu.Unlock()
	return c.instance.Update(deltaTime, world, c.params)
}

func (c *characterInstance) LastOutput() graph.Output {
	return c.instance.LastOutput()
}

func (c *characterInstance) SetWorldTransform(t pose.Transform) {
	c.mu.Lock()
	c.world = t
	c.mu.Unlock()
}

func (c *characterInstance) WorldTransform() pose.Transform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.world
}

func (c *characterInstance) SetFloat(name string, v float32) {
	c.mu.Lock()
	c.params.Floats[name] = v
	c.mu.Unlock()
}

func (c *characterInstance) SetBool(name string, v bool) {
	c.mu.Lock()
	c.params.Bools[name] = v
	c.mu.Unlock()
}

func (c *characterInstance) Graph() *graph.GraphInstance { return c.instance }

func (c *characterInstance) Shutdown() { c.instance.Shutdown() }
