package pages

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// MobileHiddenColumns are the test case table columns collapsed on small viewports
var MobileHiddenColumns = []string{"Description/Steps", "Author", "Last executor"}

// deleteSettle gives the table time to re-render after a delete
const deleteSettle = 300

// TestCasesPage is the test case listing
type TestCasesPage struct {
	region
}

func (p *TestCasesPage) row(name string) playwright.Locator {
	return p.page.GetByRole("row").Filter(playwright.LocatorFilterOptions{HasText: name}).First()
}

// CheckTestExist waits until a row containing name is visible
func (p *TestCasesPage) CheckTestExist(name string) error {
	if err := p.expect.Locator(p.row(name)).ToBeVisible(); err != nil {
		return p.waitError(fmt.Sprintf("row %q", name), "visible", err)
	}
	return nil
}

// CheckTestNotExist waits until no row containing name is visible
func (p *TestCasesPage) CheckTestNotExist(name string) error {
	if err := p.expect.Locator(p.row(name)).ToBeHidden(); err != nil {
		return p.waitError(fmt.Sprintf("row %q", name), "hidden", err)
	}
	return nil
}

// DeleteTestByName clicks the Delete button of the first row containing name
func (p *TestCasesPage) DeleteTestByName(name string) error {
	button := p.page.GetByRole("row").
		Filter(playwright.LocatorFilterOptions{HasText: name}).
		GetByRole("button", playwright.LocatorGetByRoleOptions{Name: "Delete"}).
		First()
	if err := button.Click(); err != nil {
		return p.waitError(fmt.Sprintf("Delete button of row %q", name), "clickable", err)
	}
	p.page.WaitForTimeout(deleteSettle)
	return nil
}

// DeleteLastTest clicks the Delete button of the last table row
func (p *TestCasesPage) DeleteLastTest() error {
	button := p.page.Locator("tbody tr").Last().GetByRole("button", playwright.LocatorGetByRoleOptions{Name: "Delete"})
	if err := button.Click(); err != nil {
		return p.waitError("Delete button of last row", "clickable", err)
	}
	p.page.WaitForTimeout(deleteSettle)
	return nil
}

// CheckColumnsHidden waits until every mobile-collapsed column header is hidden
func (p *TestCasesPage) CheckColumnsHidden() error {
	for _, name := range MobileHiddenColumns {
		if err := p.expect.Locator(p.columnHeader(name)).ToBeHidden(); err != nil {
			return p.waitError(fmt.Sprintf("column header %q", name), "hidden", err)
		}
	}
	return nil
}

// CheckColumnsVisible waits until every mobile-collapsed column header is visible
func (p *TestCasesPage) CheckColumnsVisible() error {
	for _, name := range MobileHiddenColumns {
		if err := p.expect.Locator(p.columnHeader(name)).ToBeVisible(); err != nil {
			return p.waitError(fmt.Sprintf("column header %q", name), "visible", err)
		}
	}
	return nil
}

func (p *TestCasesPage) columnHeader(name string) playwright.Locator {
	return p.page.GetByRole("columnheader", playwright.PageGetByRoleOptions{Name: name})
}
