/*package fieldsim glues the geometry, voxelization, solver, and spectral
packages into runnable studies: a study file describes a scene, an
excitation, and a set of monitors, and the Study type carries it from
parsed configuration through voxelization, a solver run, and analysis
output.

	cfg, err := io.ReadStudyConfig("cavity.cfg")
	st, err := fieldsim.NewStudy(cfg)
	err = st.Setup()
	err = st.Run(ctx)
	err = st.WriteResults()

or all at once with RunStudyFile.
*/
package fieldsim
