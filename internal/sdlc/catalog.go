// Package sdlc defines the built-in eight phase documentation catalog.
package sdlc

import (
	"fmt"
	"strings"

	"github.com/kingrea/phasegen/internal/role"
	"github.com/kingrea/phasegen/internal/workflow"
)

// input names a value produced by an earlier phase.
type input struct {
	phase string
	key   string
	title string
}

type stepSpec struct {
	id       string
	key      string
	output   string
	expected string
	deps     []string
	inputs   []input
}

func (s stepSpec) definition() workflow.StepDefinition {
	return workflow.StepDefinition{
		ID:        s.id,
		Key:       s.key,
		Output:    s.output,
		Expected:  s.expected,
		DependsOn: s.deps,
		Prompt:    promptFor(s),
	}
}

// promptFor builds the step template: the seed request, any cross-phase
// inputs, the same-phase context and a one-line instruction.
func promptFor(s stepSpec) string {
	var b strings.Builder
	b.WriteString("System request:\n---\n{{request}}\n---\n")
	for _, in := range s.inputs {
		fmt.Fprintf(&b, "\n%s (%s phase):\n---\n{{recall %q %q}}\n---\n", in.title, in.phase, in.phase, in.key)
	}
	b.WriteString("{{range .Context}}\n{{.Title}}:\n---\n{{recall .Phase .Key}}\n---\n{{end}}\n")
	b.WriteString("As the {{.PhaseName}} phase lead, write the {{.StepName}} document.")
	return b.String()
}

func phase(id string, index int, roleID, focus string, steps ...stepSpec) workflow.PhaseDefinition {
	def := workflow.PhaseDefinition{
		ID:    id,
		Index: index,
		Role:  roleID,
		Gate:  &workflow.GateDefinition{Role: role.ProjectManager, Focus: focus},
	}
	for _, s := range steps {
		def.Steps = append(def.Steps, s.definition())
	}
	return def
}

func deps(ids ...string) []string { return ids }

var (
	charterIn   = input{workflow.PhaseInitiation, "project_charter", "Project Charter"}
	visionIn    = input{workflow.PhaseInitiation, "vision_document", "Vision Document"}
	conopsIn    = input{workflow.PhaseInitiation, "conops", "Concept of Operations"}
	pmpIn       = input{workflow.PhasePlanning, "project_management_plan", "Project Management Plan"}
	wbsIn       = input{workflow.PhasePlanning, "wbs_specification", "Work Breakdown Structure"}
	cobitIn     = input{workflow.PhasePlanning, "cobit_checklist", "COBIT Checklist"}
	srsIn       = input{workflow.PhaseRequirements, "srs_document", "Software Requirements Specification"}
	useCasesIn  = input{workflow.PhaseRequirements, "use_cases_and_user_stories", "Use Cases and User Stories"}
	nfrIn       = input{workflow.PhaseRequirements, "nfr_document", "Non-Functional Requirements"}
	securityIn  = input{workflow.PhaseRequirements, "privacy_and_security_requirements", "Security Requirements"}
	slaIn       = input{workflow.PhaseRequirements, "sla_template", "SLA Template"}
	hldIn       = input{workflow.PhaseDesign, "high_level_design", "High Level Design"}
	lldIn       = input{workflow.PhaseDesign, "low_level_design", "Low Level Design"}
	apiIn       = input{workflow.PhaseDesign, "api_design_document", "API Design"}
	secArchIn   = input{workflow.PhaseDesign, "security_architecture_document", "Security Architecture"}
	buildPlanIn = input{workflow.PhaseDevelopment, "build_and_deployment_plan", "Build and Deployment Plan"}
	srcDocsIn   = input{workflow.PhaseDevelopment, "source_code_doc_template", "Source Code Documentation"}
	reviewIn    = input{workflow.PhaseDevelopment, "code_review_checklist", "Code Review Checklist"}
	deployIn    = input{workflow.PhaseDeployment, "deployment_plan_and_impl_plan", "Deployment Plan"}
)

// Phases returns the raw built-in phase definitions in canonical order.
func Phases() []workflow.PhaseDefinition {
	return []workflow.PhaseDefinition{
		phase(workflow.PhaseInitiation, 1, role.FoundationSetup,
			"Project Charter, Vision Document and Concept of Operations",
			stepSpec{id: "vision", key: "vision_document", output: "vision_document.txt",
				expected: "Vision document covering scope, objectives and strategic alignment."},
			stepSpec{id: "conops", key: "conops", output: "conops.txt", deps: deps("vision"),
				expected: "Concept of operations describing how the system will be operated."},
			stepSpec{id: "charter", key: "project_charter", output: "project_charter.txt", deps: deps("vision", "conops"),
				expected: "Project charter stating objectives, scope, stakeholders and authority."},
		),
		phase(workflow.PhasePlanning, 2, role.PlanningOrchestrator,
			"Project Management Plan, WBS, risk plan and cost estimates",
			stepSpec{id: "cost-estimation", key: "cost_estimation_worksheet", output: "cost_estimation_worksheet.md", inputs: []input{charterIn},
				expected: "Cost estimation worksheet with labor, hardware, software and contingency."},
			stepSpec{id: "development-estimation", key: "development_estimation", output: "development_estimation.md", deps: deps("cost-estimation"),
				expected: "Development effort estimation."},
			stepSpec{id: "capex-opex", key: "capex_opex_comparison", output: "capex_opex_comparison.md", deps: deps("cost-estimation"),
				expected: "CAPEX versus OPEX comparison."},
			stepSpec{id: "approval", key: "project_approval_document", output: "project_approval_document.md", deps: deps("cost-estimation", "capex-opex"), inputs: []input{charterIn},
				expected: "Project approval document."},
			stepSpec{id: "org-chart", key: "org_chart_specification", output: "org_chart_specification.md", inputs: []input{charterIn},
				expected: "Project organization chart."},
			stepSpec{id: "raci", key: "raci_matrix_specification", output: "raci_matrix_specification.md", deps: deps("org-chart"),
				expected: "RACI matrix."},
			stepSpec{id: "approvals-matrix", key: "approvals_matrix_specification", output: "approvals_matrix_specification.md", deps: deps("org-chart"),
				expected: "Approvals matrix."},
			stepSpec{id: "pmo-checklist", key: "pmo_checklist", output: "pmo_checklist.md",
				expected: "PMO checklist."},
			stepSpec{id: "cobit-checklist", key: "cobit_checklist", output: "cobit_checklist.md", deps: deps("pmo-checklist"),
				expected: "COBIT governance checklist."},
			stepSpec{id: "procurement", key: "procurement_plan", output: "procurement_plan.md", deps: deps("cost-estimation"),
				expected: "Procurement plan."},
			stepSpec{id: "sow", key: "statement_of_work", output: "statement_of_work.md", deps: deps("procurement"),
				expected: "Statement of work."},
			stepSpec{id: "risk-form", key: "risk_information_form_specification", output: "risk_information_form_specification.md",
				expected: "Risk information form."},
			stepSpec{id: "risk-analysis", key: "risk_analysis_plan", output: "risk_analysis_plan.md", deps: deps("risk-form"),
				expected: "Risk analysis plan."},
			stepSpec{id: "risk-plan", key: "risk_management_plan", output: "risk_management_plan.md", deps: deps("risk-analysis"),
				expected: "Risk management plan."},
			stepSpec{id: "wbs", key: "wbs_specification", output: "wbs_specification.md", inputs: []input{charterIn},
				expected: "Work breakdown structure."},
			stepSpec{id: "wbs-dictionary", key: "wbs_dictionary_specification", output: "wbs_dictionary_specification.md", deps: deps("wbs"),
				expected: "WBS dictionary."},
			stepSpec{id: "wbs-resources", key: "wbs_resource_template_specification", output: "wbs_resource_template_specification.md", deps: deps("wbs"),
				expected: "WBS resource template."},
			stepSpec{id: "pmp", key: "project_management_plan", output: "project_management_plan.md",
				deps:     deps("wbs", "wbs-dictionary", "risk-plan", "cost-estimation"),
				expected: "Integrated project management plan with scope, schedule, cost, risk and communication sub-plans."},
		),
		phase(workflow.PhaseRequirements, 3, role.RequirementAnalyst,
			"BRD, SRS, traceability matrix and non-functional requirements",
			stepSpec{id: "scope-checklist", key: "scope_checklist", output: "Scope_Checklist.md", inputs: []input{wbsIn, pmpIn},
				expected: "Scope checklist."},
			stepSpec{id: "brd", key: "brd_document", output: "BRD.md", deps: deps("scope-checklist"), inputs: []input{visionIn, charterIn},
				expected: "Business requirements document."},
			stepSpec{id: "brd-presentation", key: "brd_presentation_outline", output: "BRD_Presentation_Outline.md", deps: deps("brd"),
				expected: "BRD presentation outline."},
			stepSpec{id: "srs", key: "srs_document", output: "SRS.md", deps: deps("brd"),
				expected: "Software requirements specification."},
			stepSpec{id: "use-cases", key: "use_cases_and_user_stories", output: "Use_Cases_and_User_Stories.md", deps: deps("srs"), inputs: []input{conopsIn},
				expected: "Use cases and user stories."},
			stepSpec{id: "rtm", key: "rtm_document", output: "Requirements_Traceability_Matrix.csv", deps: deps("srs"),
				expected: "Requirements traceability matrix as CSV."},
			stepSpec{id: "impact-analysis", key: "change_impact_report", output: "Change_Impact_Analysis_Report.md", deps: deps("rtm"),
				expected: "Change impact analysis report."},
			stepSpec{id: "sla", key: "sla_template", output: "SLA_Template.md", deps: deps("srs"),
				expected: "Service level agreement template."},
			stepSpec{id: "nfr", key: "nfr_document", output: "NFRs.md", deps: deps("srs"),
				expected: "Non-functional requirements."},
			stepSpec{id: "security", key: "privacy_and_security_requirements", output: "Security_Requirements.md", deps: deps("nfr"),
				expected: "Privacy and security requirements."},
			stepSpec{id: "inspection-checklist", key: "requirements_inspection_checklist", output: "Requirements_Inspection_Checklist.md", deps: deps("srs", "rtm"),
				expected: "Requirements inspection checklist."},
			stepSpec{id: "training", key: "training_plan", output: "Training_Plan.md", deps: deps("use-cases"), inputs: []input{conopsIn},
				expected: "Training plan."},
		),
		phase(workflow.PhaseDesign, 4, role.SystemArchitect,
			"Architecture, HLD, LLD, database and API design",
			stepSpec{id: "architecture", key: "architecture_document", output: "System_Architecture.md", inputs: []input{srsIn},
				expected: "System architecture document."},
			stepSpec{id: "website-checklist", key: "website_planning_checklist", output: "Website_Planning_Checklist.md", deps: deps("architecture"),
				expected: "Website planning checklist."},
			stepSpec{id: "dfd", key: "dfd_document", output: "DFD_and_Description.md", inputs: []input{srsIn},
				expected: "Data flow diagrams with descriptions."},
			stepSpec{id: "database", key: "database_design_document", output: "Database_Design_Document.md", inputs: []input{useCasesIn},
				expected: "Database design document."},
			stepSpec{id: "api", key: "api_design_document", output: "API_Design_Document.yaml", inputs: []input{srsIn},
				expected: "OpenAPI style API design in YAML."},
			stepSpec{id: "security-architecture", key: "security_architecture_document", output: "Security_Architecture_Document.md", inputs: []input{securityIn},
				expected: "Security architecture document."},
			stepSpec{id: "hld", key: "high_level_design", output: "High_Level_Design.md", deps: deps("architecture"),
				expected: "High level design."},
			stepSpec{id: "lld", key: "low_level_design", output: "Low_Level_Design.md", deps: deps("hld"),
				expected: "Low level design."},
			stepSpec{id: "report-design", key: "report_design_template", output: "Report_Design_Template.md", inputs: []input{useCasesIn},
				expected: "Report design template."},
			stepSpec{id: "sequence", key: "sequence_diagrams", output: "Sequence_Diagrams.md", inputs: []input{useCasesIn},
				expected: "Sequence diagrams."},
		),
		phase(workflow.PhaseDevelopment, 5, role.LeadEngineer,
			"Development standards, integration plan and source control",
			stepSpec{id: "standards", key: "dev_standards", output: "Development_Standards_Document.md", inputs: []input{pmpIn},
				expected: "Development standards document."},
			stepSpec{id: "coding-guidelines", key: "coding_guidelines", output: "Coding_Guidelines.md", deps: deps("standards"),
				expected: "Coding guidelines."},
			stepSpec{id: "code-review-checklist", key: "code_review_checklist", output: "Code_Review_Checklist.md", deps: deps("standards", "coding-guidelines"),
				expected: "Code review checklist."},
			stepSpec{id: "source-docs", key: "source_code_doc_template", output: "Source_Code_Documentation_Template.md", inputs: []input{lldIn},
				expected: "Source code documentation template."},
			stepSpec{id: "progress-report", key: "dev_progress_template", output: "Development_Progress_Report_Template.docx",
				expected: "Development progress report template."},
			stepSpec{id: "middleware", key: "middleware_docs", output: "Middleware_Documentation.md", inputs: []input{hldIn},
				expected: "Middleware documentation."},
			stepSpec{id: "integration-plan", key: "integration_plan", output: "Integration_Plan.md", inputs: []input{hldIn, apiIn},
				expected: "Integration plan."},
			stepSpec{id: "unit-test-template", key: "unit_test_template", output: "Unit_Test_Scripts_Template.txt", deps: deps("integration-plan"),
				expected: "Unit test scripts template."},
			stepSpec{id: "version-control", key: "version_control_plan", output: "Version_Control_Plan.md", deps: deps("standards", "coding-guidelines"),
				expected: "Version control plan."},
			stepSpec{id: "repo-checklist", key: "repo_checklist", output: "Source_Code_Repository_Checklist.md", deps: deps("version-control"),
				expected: "Source code repository checklist."},
			stepSpec{id: "build-deployment", key: "build_and_deployment_plan", output: "Build_and_Deployment_Plan.md", deps: deps("version-control"),
				expected: "Build and deployment plan."},
		),
		phase(workflow.PhaseTesting, 6, role.QAEngineer,
			"Test plan, test cases, QA checklists and test summary",
			stepSpec{id: "test-plan", key: "test_plan", output: "Test_Plan.docx", inputs: []input{srsIn, useCasesIn, pmpIn},
				expected: "Test plan."},
			stepSpec{id: "regression-plan", key: "regression_plan", output: "Regression_Testing_Plan.md", deps: deps("test-plan"),
				expected: "Regression testing plan."},
			stepSpec{id: "uat-plan", key: "uat_plan", output: "User_Acceptance_Test_Plan.docx", deps: deps("test-plan"),
				expected: "User acceptance test plan."},
			stepSpec{id: "test-cases", key: "test_case_specification", output: "Test_Case_Specification.xlsx", deps: deps("test-plan"), inputs: []input{srsIn},
				expected: "Test case specification table."},
			stepSpec{id: "bug-report-template", key: "bug_report_template", output: "Testing_Bug_Report_Template.xlsx", deps: deps("test-cases"),
				expected: "Bug report template."},
			stepSpec{id: "bug-list", key: "bug_list", output: "Testing_Bug_List.xlsx", deps: deps("bug-report-template"),
				expected: "Bug list."},
			stepSpec{id: "penetration", key: "penetration_test_report", output: "Penetration_Testing_Report.md", inputs: []input{secArchIn},
				expected: "Penetration testing report."},
			stepSpec{id: "performance", key: "performance_test_report", output: "Performance_Testing_Report.md", inputs: []input{nfrIn},
				expected: "Performance testing report."},
			stepSpec{id: "qa-doc-checklist", key: "qa_doc_checklist", output: "Documentation_Quality_Assurance_Checklist.md", inputs: []input{srcDocsIn, reviewIn},
				expected: "Documentation QA checklist."},
			stepSpec{id: "qa-system-checklist", key: "qa_system_checklist", output: "System_Quality_Assurance_Checklist.md", deps: deps("qa-doc-checklist"),
				expected: "System QA checklist."},
			stepSpec{id: "cobit-review", key: "cobit_review", output: "COBIT_Checklist_and_Review.md", deps: deps("qa-system-checklist"), inputs: []input{cobitIn},
				expected: "COBIT checklist review."},
			stepSpec{id: "cobit-audit", key: "cobit_audit", output: "COBIT_Objectives_And_Audit_Activity_Report.md", deps: deps("cobit-review"),
				expected: "COBIT objectives and audit activity report."},
			stepSpec{id: "test-summary", key: "test_summary_report", output: "Test_Summary_Report.docx", deps: deps("test-cases", "bug-list"),
				expected: "Test summary report."},
			stepSpec{id: "interoperability", key: "interoperability_logs", output: "Interoperability_Test_Logs.md", deps: deps("test-cases"),
				expected: "Interoperability test logs."},
			stepSpec{id: "connectivity", key: "connectivity_test_report", output: "Connectivity_Testing_Report.md", deps: deps("test-cases"),
				expected: "Connectivity testing report."},
			stepSpec{id: "risk-register", key: "risk_register", output: "Risk_Management_Register.xlsx", deps: deps("bug-list", "test-summary"),
				expected: "Risk management register."},
			stepSpec{id: "issues-log", key: "issues_log", output: "Issues_Management_Log.xlsx", deps: deps("bug-list"),
				expected: "Issues management log."},
			stepSpec{id: "status-report", key: "project_status_report", output: "Project_Status_Report.md", deps: deps("test-summary"),
				expected: "Project status report."},
			stepSpec{id: "meeting-summary", key: "meeting_summary_template", output: "Meeting_Summary_Template.docx",
				expected: "Meeting summary template."},
			stepSpec{id: "milestone-status", key: "milestone_status_form", output: "Project_Milestone_Status_Form_Template.docx", deps: deps("status-report"),
				expected: "Project milestone status form."},
		),
		phase(workflow.PhaseDeployment, 7, role.DevOpsEngineer,
			"Deployment plan, handover documents and monitoring guide",
			stepSpec{id: "deployment-plan", key: "deployment_plan_and_impl_plan", output: "Deployment_Plan.md", inputs: []input{pmpIn, buildPlanIn},
				expected: "Deployment plan with environment requirements, schedule and post-deployment checks."},
			stepSpec{id: "handover", key: "handover_documents", output: "Production_Turnover_Approval_Form.docx", deps: deps("deployment-plan"),
				expected: "Production turnover approval form with installation and operations guidance."},
			stepSpec{id: "monitoring", key: "monitoring_guide", output: "Monitoring_and_Alerting_Setup_Guide.md", deps: deps("deployment-plan"),
				expected: "Monitoring and alerting setup guide."},
		),
		phase(workflow.PhaseMaintenance, 8, role.SiteReliability,
			"Maintenance plan, change requests and knowledge transfer",
			stepSpec{id: "maintenance-plan", key: "maintenance_plan", output: "Maintenance_and_Support_Plan.docx", inputs: []input{slaIn, deployIn},
				expected: "Maintenance and support plan."},
			stepSpec{id: "lessons-learned", key: "lessons_learned", output: "Lessons_Learned.md", deps: deps("maintenance-plan"),
				expected: "Lessons learned."},
			stepSpec{id: "change-request", key: "transition_plan", output: "Change_Request_Document_CCR_Template.docx", deps: deps("maintenance-plan"),
				expected: "Change request template."},
			stepSpec{id: "knowledge-transfer", key: "knowledge_transfer", output: "Developer_Knowledge_Transfer_Report.md", deps: deps("maintenance-plan"),
				expected: "Developer knowledge transfer report."},
		),
	}
}

// Catalog returns the normalized built-in catalog.
func Catalog() (workflow.Catalog, error) {
	return workflow.Catalog{Phases: Phases()}.Normalized()
}
