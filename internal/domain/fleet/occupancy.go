package fleet

// SectorOccupancy is one sector of the yard map.
type SectorOccupancy struct {
	Sector   Sector
	Vehicles []Vehicle
	ByStatus map[VehicleStatus]int
}

// Occupancy groups vehicles by sector A to D, in that order, counting each
// status. Vehicles with an unknown sector are left out.
func Occupancy(vehicles []Vehicle) []SectorOccupancy {
	index := make(map[Sector]int, len(Sectors))
	out := make([]SectorOccupancy, len(Sectors))
	for i, sec := range Sectors {
		index[sec] = i
		counts := make(map[VehicleStatus]int, len(Statuses))
		for _, st := range Statuses {
			counts[st] = 0
		}
		out[i] = SectorOccupancy{Sector: sec, ByStatus: counts}
	}

	for _, v := range vehicles {
		i, ok := index[v.Sector]
		if !ok {
			continue
		}
		out[i].Vehicles = append(out[i].Vehicles, v)
		out[i].ByStatus[v.Status]++
	}
	return out
}
