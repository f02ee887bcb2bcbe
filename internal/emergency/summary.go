package emergency

import (
	"stealthcompany.com/erdashboard/internal/department"
	"stealthcompany.com/erdashboard/internal/waittime"
)

// PriorityLevels holds the per-priority counts and the wait of the oldest patient in each
type PriorityLevels struct {
	Purple     int    `json:"purple"`
	Yellow     int    `json:"yellow"`
	Green      int    `json:"green"`
	PurpleTime string `json:"purpleTime"`
	YellowTime string `json:"yellowTime"`
	GreenTime  string `json:"greenTime"`
}

// DepartmentSummary is the display-ready card of one emergency-room unit
type DepartmentSummary struct {
	Department       department.Code `json:"type"`
	Name             string          `json:"name"`
	PatientsOnScreen int             `json:"patientsOnScreen"`
	FirstAttendance  int             `json:"firstAttendance"`
	PriorityLevels   PriorityLevels  `json:"priorityLevels"`
	TriageCount      int             `json:"triageCount"`
	TriageTime       string          `json:"triageTime"`
}

// EmptySummary is the all-zero card shown for a department whose data could not be fetched
func EmptySummary(d department.Department) DepartmentSummary {
	return DepartmentSummary{
		Department: d.Code,
		Name:       d.DisplayName,
		PriorityLevels: PriorityLevels{
			PurpleTime: waittime.Zero,
			YellowTime: waittime.Zero,
			GreenTime:  waittime.Zero,
		},
		TriageTime: waittime.Zero,
	}
}

// MockSummaries returns the hand-authored demo dataset used when the API is not
// configured or the fan-out itself fails
func MockSummaries() []DepartmentSummary {
	return []DepartmentSummary{
		{
			Department:       department.Adult,
			Name:             "Pronto Socorro Adulto",
			PatientsOnScreen: 14,
			FirstAttendance:  10,
			PriorityLevels: PriorityLevels{
				Purple: 0, Yellow: 1, Green: 5,
				PurpleTime: "00:00 min", YellowTime: "00:12 min", GreenTime: "00:13 min",
			},
			TriageCount: 4,
			TriageTime:  "00:05 min",
		},
		{
			Department:       department.Pediatric,
			Name:             "Pronto Socorro Infantil",
			PatientsOnScreen: 5,
			FirstAttendance:  3,
			PriorityLevels: PriorityLevels{
				PurpleTime: "00:00 min", YellowTime: "00:00 min", GreenTime: "00:00 min",
			},
			TriageCount: 3,
			TriageTime:  "00:13 min",
		},
		{
			Department:       department.Orthopedic,
			Name:             "Pronto Socorro Ortopédico",
			PatientsOnScreen: 2,
			FirstAttendance:  0,
			PriorityLevels: PriorityLevels{
				PurpleTime: "00:00 min", YellowTime: "00:00 min", GreenTime: "00:00 min",
			},
			TriageCount: 0,
			TriageTime:  "00:00 min",
		},
	}
}
