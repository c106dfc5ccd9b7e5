package services

import "math/rand"

// Synthetic opponents used for bot-fallback matches and the swipe deck.
// Materialized once per process from this fixed seed list.
var personaSeeds = []Profile{
	{ID: "persona-sly-sofia", DisplayName: "Sly Sofia", Level: 7, Bio: "Will argue either side. Sometimes both.", Bot: true},
	{ID: "persona-captain-contrarian", DisplayName: "Captain Contrarian", Level: 12, Bio: "No, you're wrong.", Bot: true},
	{ID: "persona-professor-gotcha", DisplayName: "Professor Gotcha", Level: 15, Bio: "Cites sources that may not exist.", Bot: true},
	{ID: "persona-mellow-max", DisplayName: "Mellow Max", Level: 3, Bio: "Here for a chill debate.", Bot: true},
	{ID: "persona-spicy-takes-tina", DisplayName: "Spicy Takes Tina", Level: 9, Bio: "Hot takes, served cold.", Bot: true},
	{ID: "persona-devils-advocate", DisplayName: "The Devil's Advocate", Level: 20, Bio: "Someone has to say it.", Bot: true},
}

// PersonaDeck serves the cached synthetic personas.
type PersonaDeck struct {
	personas []Profile
	byID     map[string]Profile
}

func NewPersonaDeck() *PersonaDeck {
	d := &PersonaDeck{
		personas: make([]Profile, len(personaSeeds)),
		byID:     make(map[string]Profile, len(personaSeeds)),
	}
	copy(d.personas, personaSeeds)
	for _, p := range d.personas {
		d.byID[p.ID] = p
	}
	return d
}

// Get resolves a persona by ID.
func (d *PersonaDeck) Get(id string) (Profile, bool) {
	p, ok := d.byID[id]
	return p, ok
}

// Random picks a persona for a bot-fallback match.
func (d *PersonaDeck) Random() Profile {
	return d.personas[rand.Intn(len(d.personas))]
}

// Shuffled returns a shuffled copy of all personas.
func (d *PersonaDeck) Shuffled() []Profile {
	out := make([]Profile, len(d.personas))
	copy(out, d.personas)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
