package plugin

import (
	"sort"
)

func (k *Kernel) registerObserver(name HookName, owner string, priority int, h ObserverHandler) int {
	if priority == 0 {
		priority = DefaultPriority
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.nextSeq++
	k.observers[name] = append(k.observers[name], observerEntry{owner: owner, priority: priority, seq: k.nextSeq, handler: h})
	k.nextHandle++
	k.handles[k.nextHandle] = dynamicHandle{name: name, owner: owner, kind: "observer"}
	return k.nextHandle
}

func (k *Kernel) registerTransform(name HookName, owner string, priority int, h TransformHandler) int {
	if priority == 0 {
		priority = DefaultPriority
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.nextSeq++
	k.transforms[name] = append(k.transforms[name], transformEntry{owner: owner, priority: priority, seq: k.nextSeq, handler: h})
	k.nextHandle++
	k.handles[k.nextHandle] = dynamicHandle{name: name, owner: owner, kind: "transform"}
	return k.nextHandle
}

// DispatchObserver fires every registered handler for name in ascending
// priority, ties broken by registration order (spec §5). Handlers never
// abort dispatch: a panic is caught, logged, and treated as if the
// handler had simply returned (spec §4.10).
func (k *Kernel) DispatchObserver(name HookName, payload interface{}) {
	k.mu.RLock()
	entries := append([]observerEntry(nil), k.observers[name]...)
	k.mu.RUnlock()
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	for _, e := range entries {
		if st, ok := k.State(e.owner); ok && st == StateErrored {
			continue
		}
		k.safeObserve(e, payload)
	}
}

func (k *Kernel) safeObserve(e observerEntry, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			pluginLogger().Errorw("observer hook panicked", "plugin", e.owner, "panic", r)
		}
	}()
	ctx := k.contextForOwner(e.owner)
	e.handler(ctx, payload)
}

// DispatchTransform folds every registered handler for name over value,
// in the same priority/registration order as observers. A handler
// returning (_, false) leaves the running value unchanged; a panicking
// handler falls back to the pre-call value (spec §4.10).
func (k *Kernel) DispatchTransform(name HookName, value interface{}) interface{} {
	k.mu.RLock()
	entries := append([]transformEntry(nil), k.transforms[name]...)
	k.mu.RUnlock()
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	for _, e := range entries {
		if st, ok := k.State(e.owner); ok && st == StateErrored {
			continue
		}
		value = k.safeTransform(e, value)
	}
	return value
}

func (k *Kernel) safeTransform(e transformEntry, value interface{}) (result interface{}) {
	result = value
	defer func() {
		if r := recover(); r != nil {
			pluginLogger().Errorw("transform hook panicked", "plugin", e.owner, "panic", r)
			result = value
		}
	}()
	ctx := k.contextForOwner(e.owner)
	next, changed := e.handler(ctx, value)
	if !changed || next == nil {
		return value
	}
	return next
}

func (k *Kernel) contextForOwner(owner string) *Context {
	k.mu.RLock()
	e, ok := k.plugins[owner]
	k.mu.RUnlock()
	if !ok {
		return &Context{Plugin: &Manifest{Name: owner}, kernel: k, log: pluginLogger()}
	}
	return k.contextFor(e.manifest)
}

// HookHandle lets a plugin dynamically register/unregister hooks from
// within its own callbacks (spec §4.10: "ctx.hooks.register(event, fn,
// priority) returning a handle; unregister(handle)").
type HookHandle struct {
	kernel *Kernel
	owner  string
}

func (h *HookHandle) RegisterObserver(name HookName, priority int, fn ObserverHandler) int {
	return h.kernel.registerObserver(name, h.owner, priority, fn)
}

func (h *HookHandle) RegisterTransform(name HookName, priority int, fn TransformHandler) int {
	return h.kernel.registerTransform(name, h.owner, priority, fn)
}

func (h *HookHandle) Unregister(handle int) {
	k := h.kernel
	k.mu.Lock()
	defer k.mu.Unlock()
	d, ok := k.handles[handle]
	if !ok {
		return
	}
	delete(k.handles, handle)
	switch d.kind {
	case "observer":
		list := k.observers[d.name]
		for i, e := range list {
			if e.owner == d.owner {
				k.observers[d.name] = append(list[:i], list[i+1:]...)
				break
			}
		}
	case "transform":
		list := k.transforms[d.name]
		for i, e := range list {
			if e.owner == d.owner {
				k.transforms[d.name] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}
