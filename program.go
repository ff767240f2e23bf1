package thicket

import (
	"errors"
	"fmt"
)

// ErrProgramBuild wraps shader composition, compile and link failures.
var ErrProgramBuild = errors.New("thicket: program build failed")

// Program is a compiled render/pick program pair shared by every display
// node whose active state hashes to StateHash.
type Program struct {
	ID        uint32
	StateHash string
	Render    ProgramHandle
	Pick      ProgramHandle

	refs int
}

// Refs returns the number of live display nodes using the program.
func (p *Program) Refs() int { return p.refs }

// programCache maps composite state hashes to programs. Exactly one program
// exists per hash while it is cached.
type programCache struct {
	gpu      GPUContext
	composer ShaderComposer
	keepWarm bool

	programs map[string]*Program
	nextID   uint32
}

func newProgramCache(gpu GPUContext, composer ShaderComposer, keepWarm bool) programCache {
	return programCache{
		gpu:      gpu,
		composer: composer,
		keepWarm: keepWarm,
		programs: make(map[string]*Program),
	}
}

// acquire returns the program for hash with its refcount incremented,
// composing and compiling it on a miss. flags is only called on a miss.
func (c *programCache) acquire(hash string, flags func() ActiveStateFlags) (*Program, error) {
	if p, ok := c.programs[hash]; ok {
		p.refs++
		return p, nil
	}

	src, err := c.composer.Compose(flags())
	if err != nil {
		return nil, fmt.Errorf("%w: compose %q: %w", ErrProgramBuild, hash, err)
	}
	render, err := c.gpu.CompileProgram(src.Render)
	if err != nil {
		return nil, fmt.Errorf("%w: render program %q: %w", ErrProgramBuild, hash, err)
	}
	pick, err := c.gpu.CompileProgram(src.Pick)
	if err != nil {
		c.gpu.DeleteProgram(render)
		return nil, fmt.Errorf("%w: pick program %q: %w", ErrProgramBuild, hash, err)
	}

	c.nextID++
	p := &Program{
		ID:        c.nextID,
		StateHash: hash,
		Render:    render,
		Pick:      pick,
		refs:      1,
	}
	c.programs[hash] = p
	return p, nil
}

// release drops one reference. Unreferenced programs are deleted unless the
// cache keeps them warm.
func (c *programCache) release(p *Program) {
	if p == nil || p.refs <= 0 {
		return
	}
	p.refs--
	if p.refs > 0 || c.keepWarm {
		return
	}
	if c.programs[p.StateHash] == p {
		delete(c.programs, p.StateHash)
	}
	c.gpu.DeleteProgram(p.Render)
	c.gpu.DeleteProgram(p.Pick)
}

// len returns the number of cached programs.
func (c *programCache) len() int { return len(c.programs) }

// purge deletes every cached program with no references.
func (c *programCache) purge() {
	for h, p := range c.programs {
		if p.refs > 0 {
			continue
		}
		delete(c.programs, h)
		c.gpu.DeleteProgram(p.Render)
		c.gpu.DeleteProgram(p.Pick)
	}
}
