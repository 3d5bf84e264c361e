// Package population builds the synthetic place roster, schedules and
// social links handed to persons at step 0.
package population

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/vivid-sim/vivid-sim/sim"
)

// Synthetic is the default sim.PopulationInitializer. It groups persons into
// households, gives every non-student a workplace, enrolls students in
// classes led by faculty, and spreads campus persons over dining halls,
// fitness centres and buildings. Deterministic given the same rng.
type Synthetic struct{}

// New returns the synthetic initializer.
func New() *Synthetic {
	return &Synthetic{}
}

var _ sim.PopulationInitializer = (*Synthetic)(nil)

// builder accumulates the roster while places are being allocated.
type builder struct {
	cfg    *sim.Config
	rng    *rand.Rand
	nextID sim.AgentID
	places []sim.PlaceSpec
	counts map[string]int
}

// add allocates a place of the named type. Missing types yield ok=false so
// scenarios may drop place types they do not model.
func (b *builder) add(typeName string, center sim.AgentID, hasCenter bool) (sim.PlaceRef, bool) {
	idx := b.cfg.PlaceTypeIndex(typeName)
	if idx < 0 {
		return sim.PlaceRef{}, false
	}
	pt := b.cfg.PlaceTypes[idx]
	network, err := sim.ParseNetworkType(pt.Network)
	if err != nil {
		panic(fmt.Sprintf("place type %q: %v", pt.Name, err))
	}
	if network == sim.Star || network == sim.FullyConnectedDependentOnCenter {
		if !hasCenter {
			network = sim.FullyConnected
		}
	} else {
		hasCenter = false
		center = 0
	}
	optionality := sim.Mandatory
	if pt.Optional {
		optionality = sim.Optional
	}
	b.counts[typeName]++
	spec := sim.PlaceSpec{
		ID:          b.nextID,
		Name:        fmt.Sprintf("%s-%d", typeName, b.counts[typeName]),
		Type:        idx,
		Optionality: optionality,
		Network:     network,
		Center:      center,
		HasCenter:   hasCenter,
	}
	b.nextID++
	b.places = append(b.places, spec)
	return sim.PlaceRef{ID: spec.ID, Type: spec.Type, Optionality: spec.Optionality}, true
}

// member is one person's in-progress assignment.
type member struct {
	id          sim.AgentID
	kind        string
	home        []sim.PlaceRef
	work        []sim.PlaceRef
	classes     []sim.PlaceRef
	dining      []sim.PlaceRef
	fitness     []sim.PlaceRef
	building    []sim.PlaceRef
	facing      bool
	classLeader bool
}

// Initialize implements sim.PopulationInitializer. The first household
// becomes the bootstrap place firstPlace.
func (s *Synthetic) Initialize(cfg *sim.Config, persons []sim.AgentID, firstPlace sim.AgentID, rng *rand.Rand) (*sim.Population, error) {
	if len(persons) == 0 {
		return nil, fmt.Errorf("no persons registered")
	}
	layout := cfg.Layout
	b := &builder{cfg: cfg, rng: rng, nextID: firstPlace, counts: make(map[string]int)}

	members, err := assignAffiliations(cfg, persons, rng)
	if err != nil {
		return nil, err
	}
	byKind := make(map[string][]*member)
	for _, m := range members {
		byKind[m.kind] = append(byKind[m.kind], m)
	}

	pop := &sim.Population{Assignments: make(map[sim.AgentID]sim.PersonAssignment, len(members))}

	// Households. The bootstrap place must be the first roster entry, so at
	// least one home place always exists.
	order := shuffled(members, rng)
	for len(order) > 0 {
		size := sim.Discrete(rng, layout.HouseholdSize.Start, layout.HouseholdSize.End)
		if size > len(order) {
			size = len(order)
		}
		household := order[:size]
		order = order[size:]
		ref, ok := b.add("home", 0, false)
		if !ok {
			return nil, fmt.Errorf("scenario has no %q place type", "home")
		}
		for i, m := range household {
			m.home = []sim.PlaceRef{ref}
			for _, other := range household[i+1:] {
				pop.Links = append(pop.Links, [2]sim.AgentID{m.id, other.id})
			}
		}
	}

	// Workplaces for everyone except students.
	var workers []*member
	for _, m := range members {
		if m.kind != sim.AffiliationStudent {
			workers = append(workers, m)
		}
	}
	if layout.WorkplaceSize > 0 {
		workers = shuffled(workers, rng)
		for start := 0; start < len(workers); start += layout.WorkplaceSize {
			ref, ok := b.add("work", 0, false)
			if !ok {
				break
			}
			end := min(start+layout.WorkplaceSize, len(workers))
			for _, m := range workers[start:end] {
				m.work = []sim.PlaceRef{ref}
			}
		}
	}

	s.enrollClasses(b, byKind[sim.AffiliationStudent], byKind[sim.AffiliationFaculty])

	var campus []*member
	for _, m := range members {
		if m.kind != sim.AffiliationGeneral {
			campus = append(campus, m)
		}
	}
	for _, m := range byKind[sim.AffiliationStaff] {
		m.facing = rng.Float64() < layout.StudentFacingShare
	}
	spread(b, rng, campus, "dining", layout.DiningHalls, func(m *member, ref sim.PlaceRef) {
		if m.kind == sim.AffiliationStudent || m.facing {
			m.dining = append(m.dining, ref)
		}
	})
	spread(b, rng, campus, "fitness", layout.FitnessCenters, func(m *member, ref sim.PlaceRef) {
		m.fitness = append(m.fitness, ref)
	})
	spread(b, rng, campus, "building", layout.Buildings, func(m *member, ref sim.PlaceRef) {
		if len(m.classes) > 0 || m.kind == sim.AffiliationStaff {
			m.building = append(m.building, ref)
		}
	})

	for _, m := range members {
		pop.Assignments[m.id] = sim.PersonAssignment{
			Affiliation:   m.kind,
			StudentFacing: m.facing,
			Schedule:      schedule(cfg, m),
			Isolation:     m.home,
		}
	}
	pop.Links = append(pop.Links, friendships(layout.Friends, members, rng)...)
	pop.Places = b.places

	logrus.Debugf("population: %d persons, %d places, %d links (%v)", len(members), len(pop.Places), len(pop.Links), b.counts)
	return pop, nil
}

// assignAffiliations draws one affiliation kind per person in id order.
func assignAffiliations(cfg *sim.Config, persons []sim.AgentID, rng *rand.Rand) ([]*member, error) {
	kinds := []string{sim.AffiliationGeneral}
	probs := []float64{0}
	for kind := range cfg.Layout.AffiliationShares {
		if kind != sim.AffiliationGeneral {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds[1:])
	for _, kind := range kinds[1:] {
		probs = append(probs, cfg.Layout.AffiliationShares[kind])
	}
	ids := make([]sim.AgentID, len(persons))
	copy(ids, persons)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	members := make([]*member, len(ids))
	for i, id := range ids {
		kind, err := sim.Categorical(rng, kinds, probs)
		if err != nil {
			return nil, fmt.Errorf("affiliation shares: %w", err)
		}
		members[i] = &member{id: id, kind: kind}
	}
	return members, nil
}

// enrollClasses creates enough classes for every student to take
// ClassesPerStudent of them, each led by a faculty member when one exists.
func (s *Synthetic) enrollClasses(b *builder, students, faculty []*member) {
	layout := b.cfg.Layout
	if len(students) == 0 || layout.ClassSize <= 0 || layout.ClassesPerStudent <= 0 {
		return
	}
	n := (len(students)*layout.ClassesPerStudent + layout.ClassSize - 1) / layout.ClassSize
	if n < layout.ClassesPerStudent {
		n = layout.ClassesPerStudent
	}
	classes := make([]sim.PlaceRef, 0, n)
	for i := 0; i < n; i++ {
		var leader *member
		if len(faculty) > 0 {
			leader = faculty[i%len(faculty)]
		}
		var ref sim.PlaceRef
		var ok bool
		if leader != nil {
			ref, ok = b.add("class", leader.id, true)
		} else {
			ref, ok = b.add("class", 0, false)
		}
		if !ok {
			return
		}
		if leader != nil {
			leader.classes = append(leader.classes, ref)
			leader.classLeader = true
		}
		classes = append(classes, ref)
	}
	for _, m := range students {
		picks := b.rng.Perm(len(classes))[:min(layout.ClassesPerStudent, len(classes))]
		sort.Ints(picks)
		for _, p := range picks {
			m.classes = append(m.classes, classes[p])
		}
	}
}

// spread creates count places of a type and hands each member one of them
// at random; assign decides whether the member actually uses it.
func spread(b *builder, rng *rand.Rand, members []*member, typeName string, count int, assign func(*member, sim.PlaceRef)) {
	if count <= 0 || len(members) == 0 {
		return
	}
	refs := make([]sim.PlaceRef, 0, count)
	for i := 0; i < count; i++ {
		ref, ok := b.add(typeName, 0, false)
		if !ok {
			return
		}
		refs = append(refs, ref)
	}
	for _, m := range members {
		assign(m, refs[rng.Intn(len(refs))])
	}
}

// schedule lays out the repeating place sets. Weekdays are the first five
// days of each seven; classes alternate between even and odd weekdays.
func schedule(cfg *sim.Config, m *member) [][]sim.PlaceRef {
	steps := cfg.Layout.ScheduleSteps
	out := make([][]sim.PlaceRef, steps)
	for t := 0; t < steps; t++ {
		day := (t / cfg.StepsPerDay) % 7
		weekday := day < 5
		places := append([]sim.PlaceRef(nil), m.home...)
		if weekday {
			places = append(places, m.work...)
			attended := false
			for k, c := range m.classes {
				if m.classLeader || k%2 == day%2 {
					places = append(places, c)
					attended = true
				}
			}
			if attended || m.kind == sim.AffiliationStaff {
				places = append(places, m.building...)
			}
		}
		places = append(places, m.dining...)
		places = append(places, m.fitness...)
		out[t] = dedupe(places)
	}
	return out
}

func dedupe(refs []sim.PlaceRef) []sim.PlaceRef {
	seen := make(map[sim.AgentID]bool, len(refs))
	out := refs[:0]
	for _, r := range refs {
		if !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// friendships links every person to a few random others. Duplicate pairs
// are harmless: the graph stores each edge once.
func friendships(r sim.IntRange, members []*member, rng *rand.Rand) [][2]sim.AgentID {
	if len(members) < 2 || r.End <= 0 {
		return nil
	}
	var links [][2]sim.AgentID
	for i, m := range members {
		k := sim.Discrete(rng, r.Start, r.End)
		for j := 0; j < k; j++ {
			other := rng.Intn(len(members) - 1)
			if other >= i {
				other++
			}
			links = append(links, [2]sim.AgentID{m.id, members[other].id})
		}
	}
	return links
}

func shuffled(members []*member, rng *rand.Rand) []*member {
	out := make([]*member, len(members))
	copy(out, members)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
