package engine

// gene is one session placement in index form: subject position, faculty
// position within that subject, grid cell and room position.
type gene struct {
	subject int
	faculty int
	day     int
	label   int
	room    int
}

// ledger holds the booking tables of one candidate schedule. Counts are kept
// per cell and conflict checks scan the overlapping labels of a cell, so an
// insert costs O(overlapping labels) instead of a scan over the schedule.
type ledger struct {
	c *ConstraintEngine

	faculty   [][]int // faculty key -> cell -> bookings
	rooms     [][]int // room -> cell -> bookings
	cells     []int   // cell -> bookings
	dayLoad   [][]int // faculty key -> day -> bookings
	sessions  []int   // subject -> scheduled sessions
	conflicts int
	breaks    int
}

func newLedger(c *ConstraintEngine) *ledger {
	cells := c.universe.CellCount()
	return &ledger{
		c:        c,
		faculty:  make([][]int, c.facultyCount),
		rooms:    make([][]int, len(c.rooms)),
		cells:    make([]int, cells),
		dayLoad:  make([][]int, c.facultyCount),
		sessions: make([]int, len(c.subjects)),
	}
}

func (l *ledger) facultyTable(key int) []int {
	if l.faculty[key] == nil {
		l.faculty[key] = make([]int, len(l.cells))
		l.dayLoad[key] = make([]int, len(l.c.universe.Days))
	}
	return l.faculty[key]
}

func (l *ledger) roomTable(room int) []int {
	if l.rooms[room] == nil {
		l.rooms[room] = make([]int, len(l.cells))
	}
	return l.rooms[room]
}

// overlapping counts bookings in table that overlap the cell (day, label).
func (l *ledger) overlapping(table []int, day, label int) int {
	if table == nil {
		return 0
	}
	n := 0
	for _, other := range l.c.universe.overlap[label] {
		n += table[l.c.universe.cell(day, other)]
	}
	return n
}

func (l *ledger) facultyFree(key, day, label int) bool {
	return l.overlapping(l.faculty[key], day, label) == 0
}

func (l *ledger) roomFree(room, day, label int) bool {
	return l.overlapping(l.rooms[room], day, label) == 0
}

// occupied reports whether any booking overlaps the cell.
func (l *ledger) occupied(day, label int) bool {
	return l.overlapping(l.cells, day, label) > 0
}

// book commits g and returns the number of new pairwise conflicts it created.
func (l *ledger) book(g gene) int {
	key := l.c.facultyKey[g.subject][g.faculty]
	fac := l.facultyTable(key)
	room := l.roomTable(g.room)
	added := l.overlapping(fac, g.day, g.label) + l.overlapping(room, g.day, g.label)
	cell := l.c.universe.cell(g.day, g.label)
	fac[cell]++
	room[cell]++
	l.cells[cell]++
	l.dayLoad[key][g.day]++
	l.sessions[g.subject]++
	l.conflicts += added
	if l.c.universe.Blocked(g.day, g.label) {
		l.breaks++
	}
	return added
}

func (l *ledger) release(g gene) {
	key := l.c.facultyKey[g.subject][g.faculty]
	fac := l.faculty[key]
	room := l.rooms[g.room]
	cell := l.c.universe.cell(g.day, g.label)
	fac[cell]--
	room[cell]--
	l.cells[cell]--
	l.dayLoad[key][g.day]--
	l.sessions[g.subject]--
	l.conflicts -= l.overlapping(fac, g.day, g.label) + l.overlapping(room, g.day, g.label)
	if l.c.universe.Blocked(g.day, g.label) {
		l.breaks--
	}
}

func (l *ledger) load(key, day int) int {
	if l.dayLoad[key] == nil {
		return 0
	}
	return l.dayLoad[key][day]
}
