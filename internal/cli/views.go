package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/engine"
	"github.com/roach88/brewlog/internal/scheduler"
)

const timeLayout = "2006-01-02 15:04"

func showTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

type recipeView struct {
	Recipe brew.Recipe        `json:"recipe"`
	Stages []brew.RecipeStage `json:"stages"`
}

func (v recipeView) WriteText(w io.Writer) error {
	r := v.Recipe
	fmt.Fprintf(w, "Recipe %d: %s (%s)\n", r.ID, r.Name, r.Category)
	if r.Description != "" {
		fmt.Fprintf(w, "  %s\n", r.Description)
	}
	fmt.Fprintf(w, "  %d stages, filter on day %d\n", r.NumberOfStages, r.FilteringDays)

	tw := table(w)
	fmt.Fprintln(tw, "STAGE\tDAY\tRICE\tWATER\tNURUK\tINSTRUCTIONS")
	for _, s := range v.Stages {
		day := "0"
		if s.DaysFromStart != nil {
			day = strconv.Itoa(*s.DaysFromStart)
		}
		rice := "-"
		if s.RiceAmountKg != nil {
			rice = strconv.FormatFloat(*s.RiceAmountKg, 'f', -1, 64) + "kg"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%sL\t%sg\t%s\n", s.StageNumber, day, rice,
			strconv.FormatFloat(s.WaterAmountLiters, 'f', -1, 64),
			strconv.FormatFloat(s.NurukAmountGrams, 'f', -1, 64),
			s.Instructions)
	}
	return tw.Flush()
}

type recipeList []brew.Recipe

func (l recipeList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No recipes.")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSTAGES\tFILTER DAY")
	for _, r := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", r.ID, r.Name, r.Category, r.NumberOfStages, r.FilteringDays)
	}
	return tw.Flush()
}

type batchList []brew.Batch

func (l batchList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No batches.")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSTARTED\tEXPECTED END\tRECIPE")
	for _, b := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", b.ID, b.BatchName, b.Status,
			showTime(b.StartDate), showTime(b.ExpectedEndDate), b.RecipeID)
	}
	return tw.Flush()
}

type batchView struct {
	Batch brew.Batch `json:"batch"`
}

func (v batchView) WriteText(w io.Writer) error {
	b := v.Batch
	fmt.Fprintf(w, "Batch %d: %s [%s]\n", b.ID, b.BatchName, b.Status)
	fmt.Fprintf(w, "  started %s, expected end %s\n", showTime(b.StartDate), showTime(b.ExpectedEndDate))
	if b.ActualEndDate != nil {
		fmt.Fprintf(w, "  ended %s\n", showTime(*b.ActualEndDate))
	}
	return nil
}

// armedAlarm pairs an alarm with what arming it did.
type armedAlarm struct {
	brew.AlarmItem
	Result string `json:"arm_result"`
}

type createdBatchView struct {
	Batch  brew.Batch   `json:"batch"`
	Alarms []armedAlarm `json:"alarms"`
}

func newCreatedBatchView(c engine.CreatedBatch) createdBatchView {
	v := createdBatchView{Batch: c.Batch, Alarms: make([]armedAlarm, len(c.Alarms))}
	for i, a := range c.Alarms {
		v.Alarms[i] = armedAlarm{AlarmItem: a, Result: c.Results[i].String()}
	}
	return v
}

func (v createdBatchView) WriteText(w io.Writer) error {
	if err := (batchView{Batch: v.Batch}).WriteText(w); err != nil {
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "ALARM\tTYPE\tWHEN\tTITLE\tRESULT")
	for _, a := range v.Alarms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.AlarmType, showTime(a.ScheduledTime), a.Title, a.Result)
	}
	return tw.Flush()
}

type alarmList []brew.AlarmItem

func (l alarmList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No alarms.")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tBATCH\tTYPE\tWHEN\tSTATE\tTITLE")
	for _, a := range l {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n", a.ID, a.BatchID, a.AlarmType, showTime(a.ScheduledTime), alarmState(a), a.Title)
	}
	return tw.Flush()
}

func alarmState(a brew.AlarmItem) string {
	switch {
	case a.IsTriggered:
		return "triggered"
	case !a.IsEnabled:
		return "disabled"
	default:
		return "enabled"
	}
}

func newArmedAlarm(a brew.AlarmItem, res scheduler.ArmResult) armedAlarm {
	return armedAlarm{AlarmItem: a, Result: res.String()}
}

func (a armedAlarm) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Alarm %d (%s) %s at %s: %s\n", a.ID, a.AlarmType, a.Title, showTime(a.ScheduledTime), a.Result)
	return err
}

type recoverView scheduler.RearmSummary

func (v recoverView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Recovered: %d armed, %d missed, %d inactive, %d failed\n", v.Armed, v.Missed, v.Inactive, v.Failed)
	return err
}

type deleted struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

func (d deleted) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Deleted %s %d\n", d.Kind, d.ID)
	return err
}
